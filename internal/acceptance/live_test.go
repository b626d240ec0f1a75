//go:build e2e

package acceptance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storyspoiler/spoilercheck/internal/acceptance"
	"github.com/storyspoiler/spoilercheck/internal/client"
	"github.com/storyspoiler/spoilercheck/internal/config"
)

// TestLiveAPI runs the suite against the deployment named by
// SPOILERCHECK_BASE_URL, SPOILERCHECK_USERNAME and SPOILERCHECK_PASSWORD:
//
//	go test -tags e2e ./internal/acceptance -run TestLiveAPI
func TestLiveAPI(t *testing.T) {
	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)
	if cfg.BaseURL == "" {
		t.Skip("SPOILERCHECK_BASE_URL not set")
	}
	require.NoError(t, cfg.Validate())

	suite := acceptance.NewSuite(acceptance.SuiteConfig{
		BaseURL:     cfg.BaseURL,
		Credentials: client.Credentials{Username: cfg.Username, Password: cfg.Password},
		Steps: acceptance.StepOptions{
			Expect:        cfg.Expect,
			RemovalChecks: cfg.Suite.RemovalChecks,
		},
		ClientOptions: []client.Option{
			client.WithTimeout(cfg.Timeout),
			client.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		},
	})

	result, err := suite.Run(context.Background())
	require.NoError(t, err)
	for _, sr := range result.Steps {
		if sr.Passed {
			t.Logf("PASS %s (%s)", sr.Name, sr.Duration)
		} else {
			t.Errorf("FAIL %s: %s", sr.Name, sr.Error)
		}
	}
}
