// sandboxctl 是 Daytona 沙箱的命令行工具。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/daytonaio/go-sdk/internal/clientv2"
	"github.com/daytonaio/go-sdk/sandbox"
)

type globalOptions struct {
	APIKey    string `long:"api-key" description:"API key, defaults to DAYTONA_API_KEY or the config file"`
	ServerURL string `long:"server-url" description:"API server URL, defaults to DAYTONA_SERVER_URL or the config file"`
	Target    string `long:"target" description:"Target region (eu, us, asia)"`
	Debug     bool   `short:"d" long:"debug" description:"Print debug logs and HTTP requests"`
}

var (
	opts   globalOptions
	logger = logrus.New()
)

// exitError 让命令以指定退出码结束，不打印错误
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newParser() *flags.Parser {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)

	mustAddCommand(parser, "configure", "Save credentials to the config file",
		"Writes the API key, server URL and target of a profile to the config file.", &configureCommand{})
	mustAddCommand(parser, "create", "Create a sandbox and wait until it is started", "", &createCommand{})
	mustAddCommand(parser, "list", "List sandboxes", "", &listCommand{})
	mustAddCommand(parser, "remove", "Remove sandboxes", "", &removeCommand{})
	mustAddCommand(parser, "exec", "Execute a command in a sandbox", "", &execCommand{})
	mustAddCommand(parser, "session", "Manage background sessions", "", &sessionCommand{})
	mustAddCommand(parser, "logs", "Print the output of a session command",
		"Prints the output of a session command. With --follow the output is streamed until the command exits.", &logsCommand{})
	return parser
}

func mustAddCommand(parser *flags.Parser, name, short, long string, data interface{}) {
	if _, err := parser.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

func setupLogging() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if opts.Debug {
		logger.SetLevel(logrus.DebugLevel)
		clientv2.SetLogger(logger)
		clientv2.PrintRequest(true)
		clientv2.PrintResponse(true)
	}
}

// newClient 按全局参数创建客户端，同时初始化日志
func newClient() (*sandbox.Client, error) {
	setupLogging()
	return sandbox.NewClient(&sandbox.Config{
		APIKey:    opts.APIKey,
		ServerURL: opts.ServerURL,
		Target:    sandbox.Target(opts.Target),
		Logger:    logger,
	})
}

// parseKeyValues 解析 KEY=VALUE 形式的参数
func parseKeyValues(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid KEY=VALUE pair: %q", kv)
		}
		m[k] = v
	}
	return m, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if _, err := newParser().Parse(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, flagsErr.Message)
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, flagsErr.Message)
			os.Exit(2)
		}
		logger.Error(err)
		os.Exit(1)
	}
}
