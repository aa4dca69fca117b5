package otel

import (
	"context"
	"testing"
)

func TestNewProvidersEmptyEndpointIsNoop(t *testing.T) {
	p, err := NewProviders(context.Background(), "", "authcore", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
		t.Fatal("no-op providers must still be non-nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	p.SetGlobal()
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		in           string
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{"localhost:4317", "localhost:4317", true, false},
		{"http://collector:4317", "collector:4317", true, false},
		{"https://collector:4317", "collector:4317", false, false},
		{"https://collector:4317/v1/traces", "collector:4317", false, false},
		{"http://", "", false, true},
	}
	for _, tc := range testCases {
		target, insecure, err := parseEndpoint(tc.in, false)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseEndpoint(%q): want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEndpoint(%q): %v", tc.in, err)
			continue
		}
		if target != tc.wantTarget || insecure != tc.wantInsecure {
			t.Errorf("parseEndpoint(%q) = (%q, %v)", tc.in, target, insecure)
		}
	}

	_, insecure, err := parseEndpoint("https://collector:4317", true)
	if err != nil || !insecure {
		t.Errorf("insecureOverride not honored: %v %v", insecure, err)
	}
}
