package acceptance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/storyspoiler/spoilercheck/internal/client"
	"github.com/storyspoiler/spoilercheck/internal/metrics"
	"github.com/storyspoiler/spoilercheck/internal/scenario"
)

// SuiteName names the pipeline in results and reports.
const SuiteName = "Story Spoiler API"

// SuiteConfig configures a Suite.
type SuiteConfig struct {
	// BaseURL is the API root including its /api prefix.
	BaseURL     string
	Credentials client.Credentials
	Steps       StepOptions
	// ClientOptions are applied to both the auth and story clients.
	ClientOptions []client.Option
	Logger        *zerolog.Logger
	Metrics       *metrics.Metrics
}

// Suite logs in once and runs the acceptance steps with that session.
type Suite struct {
	cfg    SuiteConfig
	logger zerolog.Logger
}

// NewSuite creates a Suite.
func NewSuite(cfg SuiteConfig) *Suite {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Suite{cfg: cfg, logger: logger}
}

func (s *Suite) clientOptions() []client.Option {
	opts := append([]client.Option{client.WithLogger(s.logger)}, s.cfg.ClientOptions...)
	if s.cfg.Metrics != nil {
		opts = append(opts, client.WithMetrics(s.cfg.Metrics))
	}
	return opts
}

// Login exchanges the configured credentials for a session.
func (s *Suite) Login(ctx context.Context) (*client.Session, error) {
	auth := client.NewAuthClient(s.cfg.BaseURL, s.clientOptions()...)
	session, err := auth.Login(ctx, s.cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("login as %q: %w", s.cfg.Credentials.Username, err)
	}
	return session, nil
}

// Run logs in and executes every step. A login failure aborts the run and
// is returned as an error; step failures are reported in the result.
func (s *Suite) Run(ctx context.Context) (*scenario.Result, error) {
	session, err := s.Login(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("token", session.Masked()).Msg("logged in")

	stories := client.NewStoryClient(s.cfg.BaseURL, session, s.clientOptions()...)
	defer stories.Close()

	return s.RunWith(ctx, stories), nil
}

// RunWith executes every step against api with fresh state.
func (s *Suite) RunWith(ctx context.Context, api StoryAPI) *scenario.Result {
	runner := scenario.NewRunner[State](scenario.Options{
		Logger: &s.logger,
		OnStep: func(sr scenario.StepResult) {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.RecordStep(sr.Passed)
			}
		},
	})

	var state State
	result := runner.Run(ctx, SuiteName, &state, Steps(api, s.cfg.Steps))

	passed, failed := result.Counts()
	var event *zerolog.Event
	if failed > 0 {
		names := make([]string, 0, failed)
		for _, sr := range result.Failed() {
			names = append(names, sr.Name)
		}
		event = s.logger.Warn().Strs("failed_steps", names)
	} else {
		event = s.logger.Info()
	}
	event.
		Int("passed", passed).
		Int("failed", failed).
		Dur("duration", result.Duration).
		Msg("suite finished")
	return result
}
