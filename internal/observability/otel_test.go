package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/config"
)

func TestExportMode(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.OtelConfig
		want string
	}{
		{"disabled", config.OtelConfig{}, modeOff},
		{"explicit false", config.OtelConfig{Enabled: "false", OTLPEndpoint: "collector:4318"}, modeOff},
		{"stdout", config.OtelConfig{Enabled: "stdout"}, modeStdout},
		{"enabled without endpoint", config.OtelConfig{Enabled: "true"}, modeStdout},
		{"enabled with endpoint", config.OtelConfig{Enabled: "true", OTLPEndpoint: "collector:4318"}, modeOTLP},
		{"endpoint only", config.OtelConfig{OTLPEndpoint: "collector:4318"}, modeOTLP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exportMode(tc.cfg))
		})
	}
}

func TestInitTracing_Off(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
