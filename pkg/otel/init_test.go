package otel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       Config
		ratio    float64
		endpoint string
	}{
		{"development samples everything", Config{SampleRatio: 0.2, OTLPEndpoint: "http://collector:4317"}, 1, "collector:4317"},
		{"production default ratio", Config{Environment: "production", OTLPEndpoint: "collector:4317"}, 0.1, "collector:4317"},
		{"ratio capped", Config{Environment: "staging", SampleRatio: 3, OTLPEndpoint: "https://c:4317"}, 1, "c:4317"},
		{"ratio kept", Config{Environment: "production", SampleRatio: 0.25}, 0.25, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.in
			cfg.normalize()
			assert.Equal(t, tc.ratio, cfg.SampleRatio)
			assert.Equal(t, tc.endpoint, cfg.OTLPEndpoint)
			assert.Equal(t, 15*time.Second, cfg.MetricInterval)
			assert.NotEmpty(t, cfg.Environment)
		})
	}
}
