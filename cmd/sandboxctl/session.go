package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daytonaio/go-sdk/sandbox"
)

type sessionCommand struct {
	Create sessionCreateCommand `command:"create" description:"Create a session and print its ID"`
	Delete sessionDeleteCommand `command:"delete" description:"Delete a session"`
	Run    sessionRunCommand    `command:"run" description:"Run a command in a session"`
}

type sessionCreateCommand struct {
	ID   string `long:"id" description:"Session ID, random by default"`
	Args struct {
		Sandbox string `positional-arg-name:"SANDBOX" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *sessionCreateCommand) Execute([]string) error {
	sb, ctx, cancel, err := getSandbox(c.Args.Sandbox)
	if err != nil {
		return err
	}
	defer cancel()

	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err = sb.Process().CreateSession(ctx, id); err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

type sessionDeleteCommand struct {
	Args struct {
		Sandbox string `positional-arg-name:"SANDBOX" required:"yes"`
		Session string `positional-arg-name:"SESSION" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *sessionDeleteCommand) Execute([]string) error {
	sb, ctx, cancel, err := getSandbox(c.Args.Sandbox)
	if err != nil {
		return err
	}
	defer cancel()
	return sb.Process().DeleteSession(ctx, c.Args.Session)
}

type sessionRunCommand struct {
	Async        bool          `long:"async" description:"Return immediately and stream the output"`
	NoFollow     bool          `long:"no-follow" description:"With --async, print the command ID instead of streaming the output"`
	Timeout      time.Duration `long:"timeout" description:"Time to wait for a synchronous command, 0 waits forever"`
	PollInterval time.Duration `long:"poll-interval" default:"2s" description:"Idle time before the command exit code is checked while streaming"`
	Args         struct {
		Sandbox string   `positional-arg-name:"SANDBOX" required:"yes"`
		Session string   `positional-arg-name:"SESSION" required:"yes"`
		Command []string `positional-arg-name:"COMMAND" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *sessionRunCommand) Execute([]string) error {
	sb, ctx, cancel, err := getSandbox(c.Args.Sandbox)
	if err != nil {
		return err
	}
	defer cancel()

	p := sb.Process()
	resp, err := p.ExecuteSessionCommand(ctx, c.Args.Session, sandbox.SessionExecuteRequest{
		Command: joinArgs(c.Args.Command),
		Async:   c.Async,
	}, c.Timeout)
	if err != nil {
		return err
	}

	if !c.Async {
		if resp.Output != nil {
			fmt.Print(*resp.Output)
		}
		return exitCodeError(resp.ExitCode)
	}
	if resp.CmdID == nil {
		return fmt.Errorf("server did not return a command id")
	}
	if c.NoFollow {
		fmt.Println(*resp.CmdID)
		return nil
	}
	return followLogs(ctx, p, c.Args.Session, *resp.CmdID, c.PollInterval)
}

type logsCommand struct {
	Follow       bool          `short:"f" long:"follow" description:"Stream the output until the command exits"`
	PollInterval time.Duration `long:"poll-interval" default:"2s" description:"Idle time before the command exit code is checked"`
	Args         struct {
		Sandbox string `positional-arg-name:"SANDBOX" required:"yes"`
		Session string `positional-arg-name:"SESSION" required:"yes"`
		Command string `positional-arg-name:"COMMAND_ID" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *logsCommand) Execute([]string) error {
	sb, ctx, cancel, err := getSandbox(c.Args.Sandbox)
	if err != nil {
		return err
	}
	defer cancel()

	p := sb.Process()
	if c.Follow {
		return followLogs(ctx, p, c.Args.Session, c.Args.Command, c.PollInterval)
	}
	logs, err := p.GetSessionCommandLogs(ctx, c.Args.Session, c.Args.Command)
	if err != nil {
		return err
	}
	fmt.Print(logs)
	return nil
}

// followLogs 把命令输出写到 stdout，结束后以命令的退出码返回
func followLogs(ctx context.Context, p *sandbox.Process, sessionID, commandID string, interval time.Duration) error {
	err := p.FollowSessionCommandLogs(ctx, sessionID, commandID, func(chunk string) {
		fmt.Print(chunk)
	}, sandbox.WithLogsPollInterval(interval))
	if err != nil {
		return err
	}
	cmd, err := p.GetSessionCommand(ctx, sessionID, commandID)
	if err != nil {
		return err
	}
	return exitCodeError(cmd.ExitCode)
}

func exitCodeError(code *int) error {
	if code == nil || *code == 0 {
		return nil
	}
	return &exitError{code: *code}
}

func getSandbox(id string) (*sandbox.Sandbox, context.Context, context.CancelFunc, error) {
	client, err := newClient()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := signalContext()
	sb, err := client.Get(ctx, id)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return sb, ctx, cancel, nil
}

// joinArgs 把剩余参数拼成一条 shell 命令
func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
