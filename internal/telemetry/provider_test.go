package telemetry

import (
	"context"
	"testing"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"noop when endpoint empty", Config{}},
		{"noop when disabled", Config{Endpoint: "http://localhost:4318", Disabled: true}},
		// Non-routable address so no export actually happens.
		{"provider when endpoint set", Config{Endpoint: "http://192.0.2.1:4318"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), "plugind-test", tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
		})
	}
}
