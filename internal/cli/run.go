package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storyspoiler/spoilercheck/internal/acceptance"
	"github.com/storyspoiler/spoilercheck/internal/client"
	"github.com/storyspoiler/spoilercheck/internal/metrics"
	"github.com/storyspoiler/spoilercheck/internal/report"
)

func (a *app) suite(m *metrics.Metrics) *acceptance.Suite {
	return acceptance.NewSuite(acceptance.SuiteConfig{
		BaseURL: a.cfg.BaseURL,
		Credentials: client.Credentials{
			Username: a.cfg.Username,
			Password: a.cfg.Password,
		},
		Steps: acceptance.StepOptions{
			Expect:        a.cfg.Expect,
			RemovalChecks: a.cfg.Suite.RemovalChecks,
		},
		ClientOptions: a.clientOptions(),
		Logger:        &a.log,
		Metrics:       m,
	})
}

func (a *app) runCmd() *cobra.Command {
	var (
		format      string
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in and run every acceptance step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if err := a.ensureCredentials(); err != nil {
				return err
			}

			var m *metrics.Metrics
			if withMetrics {
				m = metrics.New()
			}

			result, err := a.suite(m).Run(cmd.Context())
			if err != nil {
				return err
			}

			opts := report.Options{Format: f, Color: f == report.FormatText && a.colorEnabled(a.streams.Out)}
			if err := report.Write(a.streams.Out, result, opts); err != nil {
				return err
			}
			if m != nil {
				if err := m.WriteText(a.streams.Err); err != nil {
					return fmt.Errorf("writing metrics: %w", err)
				}
			}

			if !result.Passed {
				return ErrStepsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "report format: text, json or yaml")
	cmd.Flags().Bool("removal-checks", false, "also edit and delete the story after it was removed")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "write Prometheus metrics to stderr after the run")

	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check that the configured credentials yield a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureCredentials(); err != nil {
				return err
			}
			session, err := a.suite(nil).Login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.streams.Out, "Logged in as %s (token %s)\n", a.cfg.Username, session.Masked())
			return nil
		},
	}
}

func (a *app) stepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the acceptance steps in run order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := acceptance.Describe(acceptance.StepOptions{RemovalChecks: a.cfg.Suite.RemovalChecks})
			for _, s := range steps {
				fmt.Fprintf(a.streams.Out, "  %d. %-26s %-7s %-52s %d\n", s.Order, s.Name, s.Method, s.Path, s.Status)
			}
			return nil
		},
	}
	cmd.Flags().Bool("removal-checks", false, "include the removed-story steps")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration (password redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = a.streams.Out.Write(data)
			return err
		},
	}
}
