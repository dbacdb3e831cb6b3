// Package main implements podctl, an interactive console for an OpenLoop pod
// controller.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openloop/podctl/internal/config"
	"github.com/openloop/podctl/internal/console"
	"github.com/openloop/podctl/internal/heartbeat"
	"github.com/openloop/podctl/internal/journal"
	"github.com/openloop/podctl/internal/logger"
	"github.com/openloop/podctl/internal/prompt"
	"github.com/openloop/podctl/internal/session"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// usageError marks a bad invocation, reported with ExitUsage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	code := console.ExitOK
	root := newRootCmd(stdin, stdout, stderr, &code)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "podctl: %v\n", err)
		var usage *usageError
		if errors.As(err, &usage) {
			return console.ExitUsage
		}
		return console.ExitFailure
	}
	return code
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer, code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "podctl",
		Short: "Interactive console for an OpenLoop pod controller",
		Long: `podctl connects to a pod controller, keeps the link alive with a heartbeat,
and forwards operator commands while showing the pod's lifecycle stage in the prompt.

The connection is retried until it succeeds and re-established whenever it drops.
End of input exits with status 0; an interrupt exits with status 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{fmt.Errorf("unexpected argument %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			*code, err = runConsole(ctx, cfg, stdin, stdout, stderr)
			return err
		},
	}

	cmd.Flags().SortFlags = false
	// -h is the host. Declaring help first keeps cobra from claiming -h for it.
	cmd.Flags().Bool("help", false, "Show this help")
	config.RegisterFlags(cmd.Flags())
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})
	return cmd
}

// loadConfig layers the config file, environment and flags, and validates
// the result.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	path, err := fs.GetString("config")
	if err != nil {
		return nil, &usageError{err}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, &usageError{err}
	}
	cfg.ApplyEnv()
	if err := cfg.ApplyFlags(fs); err != nil {
		return nil, &usageError{err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &usageError{err}
	}
	return cfg, nil
}

func runConsole(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if err := logger.Initialize(cfg.Logging, stderr); err != nil {
		return console.ExitFailure, fmt.Errorf("initialize logging: %w", err)
	}

	var recorder session.Recorder
	if cfg.Journal.DSN != "" {
		j, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			return console.ExitFailure, fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		resumeJournal(ctx, j, resumeEvents)
		recorder = j
	}

	dialer, err := session.NewDialer(cfg.Pod.Transport, cfg.Pod.Path)
	if err != nil {
		return console.ExitUsage, &usageError{err}
	}

	address := cfg.Pod.Address()
	con := console.New(stdout, prompt.NewStyler(stdout, colorEnabled(cfg.Console.Color, stdout)))
	con.SetAddress(address)

	sess := session.New(session.Config{
		Address:        address,
		Dialer:         dialer,
		Display:        con,
		Recorder:       recorder,
		PingTimeout:    cfg.Heartbeat.Timeout(),
		ConnectTimeout: cfg.Pod.ConnectTimeout(),
	})
	con.SetSource(sess)

	loop := console.NewLoop(sess, con, console.ReadLines(stdin), console.LoopConfig{
		RetryDelay:       cfg.Pod.RetryDelay(),
		PollInterval:     cfg.Console.PollInterval(),
		DiscoveryCommand: cfg.Console.DiscoveryCommand,
	})
	heart := heartbeat.New(cfg.Heartbeat.Interval(), sess.Ping)

	logger.Always("Starting podctl",
		"address", address,
		"transport", cfg.Pod.Transport,
		"heartbeat", cfg.Heartbeat.Interval().String(),
		"journal", cfg.Journal.DSN != "")

	return console.NewSupervisor(loop, heart).Run(ctx), nil
}

// resumeEvents is how much of a resumed journal is replayed into the log.
const resumeEvents = 5

// resumeJournal logs the tail of a journal left by an earlier run and returns
// it. A journal that cannot be read is not fatal.
func resumeJournal(ctx context.Context, j *journal.Journal, n int) []journal.Event {
	events, err := j.Recent(ctx, n)
	if err != nil {
		logger.Warning("Could not read journal", "error", err)
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	logger.Always("Resuming journal", "events", len(events), "last", events[len(events)-1].At.Format(time.RFC3339))
	for _, ev := range events {
		logger.Debug("Journal event",
			"conn", ev.ConnID,
			"address", ev.Address,
			"kind", string(ev.Kind),
			"detail", ev.Detail,
			"at", ev.At.Format(time.RFC3339))
	}
	return events
}

// colorEnabled resolves the color mode against the output stream.
func colorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	return ok && prompt.ColorEnabled(f)
}
