// Package snapshot records run results as JSON files for later inspection.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/bakkerme/digestbot/internal/core"
)

type Payload struct {
	Result       *core.RunResult   `json:"result"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Path returns where Save writes a result: dir/<topic>/<started>-<run id>.json.
func Path(dir string, result *core.RunResult) string {
	topic := unsafeChars.ReplaceAllString(result.Topic, "_")
	if topic == "" {
		topic = "default"
	}
	name := fmt.Sprintf("%s-%s.json", result.StartedAt.UTC().Format("20060102T150405Z"), result.RunID)
	return filepath.Join(dir, topic, name)
}

func Save(dir string, result *core.RunResult) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("snapshot directory is required")
	}
	if result == nil {
		return "", fmt.Errorf("run result is required")
	}
	path := Path(dir, result)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}
	payload := Payload{Result: result}
	for _, f := range result.SourceFailures {
		if f.Err == nil {
			continue
		}
		if payload.SourceErrors == nil {
			payload.SourceErrors = map[string]string{}
		}
		payload.SourceErrors[f.Source] = f.Err.Error()
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

func Load(path string) (*Payload, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &payload, nil
}
