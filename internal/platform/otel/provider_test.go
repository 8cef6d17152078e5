package otel

import (
	"context"
	"strings"
	"testing"
)

func setEnv(t *testing.T, endpoint, enabled, ratio string) {
	t.Helper()
	t.Setenv(envPrefix+"ENDPOINT", endpoint)
	t.Setenv(envPrefix+"ENABLED", enabled)
	t.Setenv(envPrefix+"SAMPLE_RATIO", ratio)
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		enabled  string
		ratio    string
		wantErr  bool
	}{
		{name: "no endpoint"},
		{name: "disabled", endpoint: "http://localhost:4318", enabled: "false"},
		// 192.0.2.0/24 is unroutable so nothing is exported.
		{name: "provider", endpoint: "http://192.0.2.1:4318", ratio: "0.5"},
		{name: "bad ratio", endpoint: "http://192.0.2.1:4318", ratio: "half", wantErr: true},
		{name: "bad enabled", enabled: "maybe", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.endpoint, tt.enabled, tt.ratio)
			shutdown, err := Setup(context.Background(), "pool")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected config error")
				}
				return
			}
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setEnv(t, "", "", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Enabled || cfg.SampleRatio != 1 || cfg.Endpoint != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: "AlwaysOnSampler"},
		{ratio: 3, want: "AlwaysOnSampler"},
		{ratio: 0, want: "AlwaysOffSampler"},
		{ratio: -1, want: "AlwaysOffSampler"},
		{ratio: 0.25, want: "ParentBased"},
	}
	for _, tt := range tests {
		if got := (Config{SampleRatio: tt.ratio}).Sampler().Description(); !strings.HasPrefix(got, tt.want) {
			t.Fatalf("ratio %v: expected %s, got %s", tt.ratio, tt.want, got)
		}
	}
}
