// Package trigger turns topic schedules into run events for daemon mode.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Event signals that a topic is due for a run.
type Event struct {
	Topic     string
	Timestamp time.Time
}

// Cron emits an Event on each schedule tick. A tick is dropped when the
// previous one has not been consumed yet.
type Cron struct {
	topic    string
	spec     string
	timezone string

	cron     *cron.Cron
	events   chan Event
	stopOnce sync.Once
}

func NewCron(topic, spec, timezone string) *Cron {
	return &Cron{topic: topic, spec: spec, timezone: timezone}
}

func (c *Cron) Topic() string {
	return c.topic
}

// parse resolves the standard 5-field spec (or descriptor) and its location.
func (c *Cron) parse() (cron.Schedule, *time.Location, error) {
	if c.spec == "" {
		return nil, nil, errors.New("cron schedule is required")
	}
	loc := time.UTC
	if c.timezone != "" {
		var err error
		if loc, err = time.LoadLocation(c.timezone); err != nil {
			return nil, nil, fmt.Errorf("invalid timezone: %w", err)
		}
	}
	sched, err := cron.ParseStandard(c.spec)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cron schedule %q: %w", c.spec, err)
	}
	return sched, loc, nil
}

func (c *Cron) Validate() error {
	_, _, err := c.parse()
	return err
}

// Next reports the first tick after t in the schedule's timezone, or zero if
// the schedule is invalid.
func (c *Cron) Next(after time.Time) time.Time {
	sched, loc, err := c.parse()
	if err != nil {
		return time.Time{}
	}
	return sched.Next(after.In(loc))
}

// Start begins scheduling. The returned channel is closed once ctx is done or Stop is called.
func (c *Cron) Start(ctx context.Context) (<-chan Event, error) {
	sched, loc, err := c.parse()
	if err != nil {
		return nil, err
	}

	c.events = make(chan Event, 1)
	c.cron = cron.New(cron.WithLocation(loc))
	c.cron.Schedule(sched, cron.FuncJob(func() { c.fire(time.Now().UTC()) }))
	c.cron.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c.events, nil
}

func (c *Cron) fire(at time.Time) {
	select {
	case c.events <- Event{Topic: c.topic, Timestamp: at}:
	default:
	}
}

func (c *Cron) Stop() {
	c.stopOnce.Do(func() {
		if c.cron != nil {
			<-c.cron.Stop().Done()
		}
		if c.events != nil {
			close(c.events)
		}
	})
}
