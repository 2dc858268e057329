package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/daytonaio/go-sdk/internal/configfile"
	"github.com/daytonaio/go-sdk/sandbox"
)

type configureCommand struct {
	Profile   string `short:"p" long:"profile" default:"default" description:"Profile name"`
	APIKey    string `long:"api-key" required:"yes" description:"API key"`
	ServerURL string `long:"server-url" description:"API server URL"`
	Target    string `long:"target" choice:"eu" choice:"us" choice:"asia" description:"Target region"`
}

func (c *configureCommand) Execute([]string) error {
	path := configfile.Path()
	err := configfile.SaveProfile(path, c.Profile, configfile.Profile{
		APIKey:    c.APIKey,
		ServerURL: c.ServerURL,
		Target:    c.Target,
	})
	if err != nil {
		return fmt.Errorf("save profile %s: %w", c.Profile, err)
	}
	fmt.Printf("profile %s saved to %s\n", c.Profile, path)
	return nil
}

type createCommand struct {
	Language string        `short:"l" long:"language" default:"python" choice:"python" choice:"typescript" choice:"javascript" description:"Language used by code run"`
	ID       string        `long:"id" description:"Sandbox ID, random by default"`
	Name     string        `long:"name" description:"Sandbox name, same as the ID by default"`
	Image    string        `long:"image" description:"Sandbox image"`
	User     string        `long:"user" description:"OS user inside the sandbox"`
	Env      []string      `short:"e" long:"env" value-name:"KEY=VALUE" description:"Environment variable, may be repeated"`
	Labels   []string      `long:"label" value-name:"KEY=VALUE" description:"Label, may be repeated"`
	CPU      int           `long:"cpu" description:"CPU cores"`
	Memory   int           `long:"memory" description:"Memory in GB"`
	Disk     int           `long:"disk" description:"Disk in GB"`
	AutoStop int           `long:"auto-stop" default:"-1" description:"Minutes of inactivity before the sandbox is stopped, 0 disables"`
	Timeout  time.Duration `long:"timeout" default:"1m" description:"Time to wait for the sandbox to start, 0 waits forever"`
	Region   string        `long:"region" choice:"eu" choice:"us" choice:"asia" description:"Target region of this sandbox, defaults to the client target"`
}

func (c *createCommand) Execute([]string) error {
	env, err := parseKeyValues(c.Env)
	if err != nil {
		return err
	}
	labels, err := parseKeyValues(c.Labels)
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	params := &sandbox.CreateParams{
		Language: sandbox.CodeLanguage(c.Language),
		ID:       c.ID,
		Name:     c.Name,
		Image:    c.Image,
		OSUser:   c.User,
		EnvVars:  env,
		Labels:   labels,
		Target:   sandbox.Target(c.Region),
		Timeout:  c.Timeout,
	}
	if c.AutoStop >= 0 {
		params.AutoStopInterval = &c.AutoStop
	}
	if c.CPU > 0 || c.Memory > 0 || c.Disk > 0 {
		params.Resources = &sandbox.Resources{CPU: c.CPU, Memory: c.Memory, Disk: c.Disk}
	}
	sb, err := client.Create(ctx, params)
	if err != nil {
		return err
	}
	fmt.Println(sb.ID())
	return nil
}

type listCommand struct{}

func (c *listCommand) Execute([]string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sandboxes, err := client.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tLANGUAGE\tTARGET\tCPU\tMEMORY\tDISK")
	for _, sb := range sandboxes {
		info, err := sb.Info(ctx)
		if err != nil {
			logger.WithField("sandbox", sb.ID()).WithError(err).Warn("failed to get sandbox info")
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", sb.ID(), info.State, sb.Language(), info.Target,
			info.Resources.CPU, info.Resources.Memory, info.Resources.Disk)
	}
	return w.Flush()
}

type removeCommand struct {
	Timeout time.Duration `long:"timeout" default:"1m" description:"Time to wait for each removal"`
	Args    struct {
		IDs []string `positional-arg-name:"SANDBOX" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *removeCommand) Execute([]string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	var failed int
	for _, id := range c.Args.IDs {
		sb, err := client.Get(ctx, id)
		if err == nil {
			err = client.Remove(ctx, sb, c.Timeout)
		}
		if err != nil {
			logger.WithField("sandbox", id).WithError(err).Error("failed to remove sandbox")
			failed++
			continue
		}
		fmt.Println(id)
	}
	if failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

type execCommand struct {
	Cwd     string        `long:"cwd" description:"Working directory"`
	Timeout time.Duration `long:"timeout" description:"Command timeout inside the sandbox, 0 means no limit"`
	Code    bool          `long:"code" description:"Treat the arguments as code in the sandbox language"`
	Args    struct {
		Sandbox string   `positional-arg-name:"SANDBOX" required:"yes"`
		Command []string `positional-arg-name:"COMMAND" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *execCommand) Execute([]string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sb, err := client.Get(ctx, c.Args.Sandbox)
	if err != nil {
		return err
	}
	command := joinArgs(c.Args.Command)
	execOpts := []sandbox.ExecOption{sandbox.WithExecTimeout(c.Timeout)}
	if c.Cwd != "" {
		execOpts = append(execOpts, sandbox.WithCwd(c.Cwd))
	}

	var resp *sandbox.ExecuteResponse
	if c.Code {
		resp, err = sb.Process().CodeRun(ctx, command, nil, execOpts...)
	} else {
		resp, err = sb.Process().Exec(ctx, command, execOpts...)
	}
	if err != nil {
		return err
	}
	fmt.Print(resp.Result)
	if resp.ExitCode != 0 {
		return &exitError{code: resp.ExitCode}
	}
	return nil
}
