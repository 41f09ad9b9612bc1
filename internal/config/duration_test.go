package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "7d", want: 7 * day},
		{in: "1w", want: 7 * day},
		{in: "1w2d3h", want: 9*day + 3*time.Hour},
		{in: "1.5d", want: 36 * time.Hour},
		{in: "-2w", want: -14 * day},
		{in: "90m", want: 90 * time.Minute},
		{in: " 15s ", want: 15 * time.Second},
		{in: "", wantErr: true},
		{in: "3x", wantErr: true},
		{in: "2d3x", wantErr: true},
		{in: "-", wantErr: true},
		{in: "d", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDuration(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestDurationYAML(t *testing.T) {
	var v struct {
		Window Duration `yaml:"window"`
	}
	if err := yaml.Unmarshal([]byte("window: 2w\n"), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Window.Std() != 14*day {
		t.Fatalf("window = %v", v.Window.Std())
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "window: 14d\n" {
		t.Fatalf("marshal = %q", out)
	}
	if Duration(90*time.Minute).String() != "1h30m0s" {
		t.Fatalf("non-day durations keep Go formatting")
	}

	if err := yaml.Unmarshal([]byte("window: soon\n"), &v); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
