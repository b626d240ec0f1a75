// Package cli implements the spoilercheck command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/storyspoiler/spoilercheck/internal/client"
	"github.com/storyspoiler/spoilercheck/internal/config"
	"github.com/storyspoiler/spoilercheck/internal/logger"
)

// Exit codes returned by Execute.
const (
	ExitOK          = 0
	ExitStepsFailed = 1
	ExitError       = 2
)

// ErrStepsFailed is returned by run when at least one step failed. The
// report has already been written, so Execute prints nothing more.
var ErrStepsFailed = errors.New("one or more steps failed")

// Streams are the standard streams a command reads and writes.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool
	Quiet      bool
}

type app struct {
	streams Streams
	flags   GlobalFlags

	cfg *config.Config
	log zerolog.Logger

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

func newApp(streams Streams) *app {
	return &app{
		streams:      streams,
		log:          zerolog.Nop(),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// Execute runs the command line with args and returns the process exit
// code.
func Execute(ctx context.Context, args []string, streams Streams) int {
	a := newApp(streams)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrStepsFailed):
		return ExitStepsFailed
	default:
		fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return ExitError
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "spoilercheck",
		Short: "Acceptance checks for the Story Spoiler API",
		Long: `spoilercheck logs in to a Story Spoiler API deployment and runs an
ordered set of create, edit, list and delete checks against it.

Settings come from flags, SPOILERCHECK_* environment variables, a
spoilercheck.yaml config file and a .env file, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.ConfigPath, "config", "c", "", "config file path (default ./spoilercheck.yaml if present)")
	pf.StringVar(&a.flags.EnvFile, "env-file", "", "dotenv file to load (default ./.env if present)")
	pf.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "log every request")
	pf.BoolVarP(&a.flags.Quiet, "quiet", "q", false, "log errors only")
	pf.String("base-url", "", "API root including /api, e.g. https://host/api")
	pf.String("username", "", "login username")
	pf.Duration("timeout", client.DefaultTimeout, "per-request timeout")
	pf.Float64("rate-limit", 0, "max requests per second (0 = unlimited)")
	pf.String("log-format", "", "log format: console or json")

	root.AddCommand(a.runCmd())
	root.AddCommand(a.loginCmd())
	root.AddCommand(a.stepsCmd())
	root.AddCommand(a.configCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// load resolves configuration and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: a.flags.ConfigPath,
		EnvFile:    a.flags.EnvFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	if a.flags.Verbose {
		logCfg.Level = "debug"
	}
	if a.flags.Quiet {
		logCfg.Level = "error"
	}

	a.cfg = cfg
	a.log = logger.New(logCfg, a.streams.Err)
	return nil
}

// ensureCredentials prompts for a missing password when stdin is a
// terminal, then validates the configuration.
func (a *app) ensureCredentials() error {
	if a.cfg.Password == "" {
		if f, ok := a.streams.In.(interface{ Fd() uintptr }); ok && a.isTerminal(int(f.Fd())) {
			fmt.Fprint(a.streams.Err, "Password: ")
			pw, err := a.readPassword(int(f.Fd()))
			fmt.Fprintln(a.streams.Err)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			a.cfg.Password = strings.TrimRight(string(pw), "\r\n")
		}
	}
	return a.cfg.Validate()
}

// clientOptions is built once per run so login and story calls share one
// rate limit.
func (a *app) clientOptions() []client.Option {
	return []client.Option{
		client.WithTimeout(a.cfg.Timeout),
		client.WithRateLimit(a.cfg.RateLimit, a.cfg.RateBurst),
	}
}

// colorEnabled reports whether w is a terminal and NO_COLOR is unset.
func (a *app) colorEnabled(w io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && a.isTerminal(int(f.Fd()))
}
