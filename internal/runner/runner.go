// Package runner drives digest pipelines for one or more topics, either once
// or on cron schedules.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bakkerme/digestbot/internal/core"
	"github.com/bakkerme/digestbot/internal/digest"
	"github.com/bakkerme/digestbot/internal/runner/snapshot"
	"github.com/bakkerme/digestbot/internal/trigger"
)

// ErrRunInProgress is returned when a topic is already running in this process.
var ErrRunInProgress = errors.New("run already in progress")

// Pipeline is the part of *digest.Pipeline the runner needs.
type Pipeline interface {
	Topic() string
	Run(ctx context.Context) (*core.RunResult, error)
}

var _ Pipeline = (*digest.Pipeline)(nil)

type Runner struct {
	logger     *slog.Logger
	historyDir string

	order     []string
	pipelines map[string]Pipeline
	locks     map[string]*sync.Mutex

	mu      sync.Mutex
	running map[string]bool
	last    map[string]lastRun
}

type lastRun struct {
	result *core.RunResult
	err    error
}

// TopicStatus describes a topic's most recent run as seen by this process.
type TopicStatus struct {
	Topic      string          `json:"topic"`
	Running    bool            `json:"running"`
	LastResult *core.RunResult `json:"last_result,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
}

type Option func(*Runner)

// WithHistoryDir records every completed run as a JSON snapshot under dir.
func WithHistoryDir(dir string) Option {
	return func(r *Runner) { r.historyDir = dir }
}

func New(logger *slog.Logger, pipelines []Pipeline, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		logger:    logger,
		pipelines: make(map[string]Pipeline, len(pipelines)),
		locks:     make(map[string]*sync.Mutex, len(pipelines)),
		running:   make(map[string]bool, len(pipelines)),
		last:      make(map[string]lastRun, len(pipelines)),
	}
	for _, p := range pipelines {
		if p == nil {
			continue
		}
		name := p.Topic()
		if _, dup := r.pipelines[name]; dup {
			return nil, fmt.Errorf("duplicate topic %q", name)
		}
		r.order = append(r.order, name)
		r.pipelines[name] = p
		r.locks[name] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Runner) Topics() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RunTopic runs a single topic. It refuses to start while the same topic is
// already running in this process.
func (r *Runner) RunTopic(ctx context.Context, topic string) (*core.RunResult, error) {
	p, ok := r.pipelines[topic]
	if !ok {
		return nil, &core.ConfigurationError{Field: "topic", Reason: fmt.Sprintf("unknown topic %q", topic)}
	}
	lock := r.locks[topic]
	if !lock.TryLock() {
		return nil, fmt.Errorf("topic %s: %w", topic, ErrRunInProgress)
	}
	defer lock.Unlock()

	r.setRunning(topic, true)
	result, err := p.Run(core.WithLogger(ctx, r.logger))
	r.record(topic, result, err)
	if result != nil && r.historyDir != "" && !result.Skipped {
		if path, serr := snapshot.Save(r.historyDir, result); serr != nil {
			r.logger.Warn("failed to record run snapshot", "topic", topic, "error", serr)
		} else {
			r.logger.Debug("recorded run snapshot", "topic", topic, "path", path)
		}
	}
	return result, err
}

func (r *Runner) setRunning(topic string, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[topic] = running
}

func (r *Runner) record(topic string, result *core.RunResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[topic] = false
	r.last[topic] = lastRun{result: result, err: err}
}

// Status returns every topic in configuration order.
func (r *Runner) Status() []TopicStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TopicStatus, 0, len(r.order))
	for _, topic := range r.order {
		st := TopicStatus{Topic: topic, Running: r.running[topic]}
		if last, ok := r.last[topic]; ok {
			st.LastResult = last.result
			if last.err != nil {
				st.LastError = last.err.Error()
			}
		}
		out = append(out, st)
	}
	return out
}

// RunOnce runs the given topics (all when none are named) one after another.
// A failing topic does not stop the others; errors are joined.
func (r *Runner) RunOnce(ctx context.Context, topics ...string) ([]*core.RunResult, error) {
	if len(topics) == 0 {
		topics = r.order
	}
	var (
		results []*core.RunResult
		errs    []error
	)
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := r.RunTopic(ctx, topic)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			r.logger.Error("topic run failed", "topic", topic, "error", err)
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Start schedules each topic's cron trigger and returns once they are running.
// Runs continue in the background until ctx is done.
func (r *Runner) Start(ctx context.Context, triggers []*trigger.Cron) error {
	for _, tr := range triggers {
		if tr == nil {
			continue
		}
		if _, ok := r.pipelines[tr.Topic()]; !ok {
			return &core.ConfigurationError{Field: "schedule", Reason: fmt.Sprintf("unknown topic %q", tr.Topic())}
		}
		events, err := tr.Start(ctx)
		if err != nil {
			return fmt.Errorf("topic %s: start schedule: %w", tr.Topic(), err)
		}
		r.logger.Info("topic scheduled", "topic", tr.Topic(), "next", tr.Next(time.Now()))
		go r.listen(ctx, events)
	}
	return nil
}

func (r *Runner) listen(ctx context.Context, events <-chan trigger.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.logger.Info("trigger event", "topic", event.Topic, "time", event.Timestamp)
			if _, err := r.RunTopic(ctx, event.Topic); err != nil {
				if errors.Is(err, ErrRunInProgress) {
					r.logger.Warn("skipping tick, previous run still active", "topic", event.Topic)
					continue
				}
				r.logger.Error("topic run failed", "topic", event.Topic, "error", err)
			}
		}
	}
}
