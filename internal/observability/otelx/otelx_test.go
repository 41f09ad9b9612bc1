package otelx

import (
	"context"
	"testing"

	"github.com/bakkerme/digestbot/internal/config"
)

func TestInitDisabledReturnsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), nil, config.OTelEnvConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected non-nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.OTelEnvConfig
		wantEndpoint string
		wantProtocol string
		wantRatio    float64
		wantErr      bool
	}{
		{name: "defaults", cfg: config.OTelEnvConfig{SampleRatio: 1}, wantEndpoint: "localhost:4317", wantProtocol: "grpc", wantRatio: 1},
		{name: "http default endpoint", cfg: config.OTelEnvConfig{Protocol: "http"}, wantEndpoint: "localhost:4318", wantProtocol: "http/protobuf"},
		{name: "grpc strips scheme", cfg: config.OTelEnvConfig{Endpoint: "http://collector:4317"}, wantEndpoint: "collector:4317", wantProtocol: "grpc"},
		{name: "http keeps url", cfg: config.OTelEnvConfig{Protocol: "http/protobuf", Endpoint: "https://otel.example.com/v1/traces"}, wantEndpoint: "https://otel.example.com/v1/traces", wantProtocol: "http/protobuf"},
		{name: "ratio clamped", cfg: config.OTelEnvConfig{SampleRatio: 3}, wantEndpoint: "localhost:4317", wantProtocol: "grpc", wantRatio: 1},
		{name: "bad protocol", cfg: config.OTelEnvConfig{Protocol: "thrift"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := resolve(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if s.endpoint != tt.wantEndpoint || s.protocol != tt.wantProtocol || s.sampleRatio != tt.wantRatio {
				t.Fatalf("resolve = %+v", s)
			}
			if s.serviceName != "digestbot" {
				t.Fatalf("service name = %q", s.serviceName)
			}
		})
	}
}
