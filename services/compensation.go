package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/utils"
)

type undoStep struct {
	name string
	undo func(ctx context.Context) error
}

// compensator records undo steps for a multi-call write and replays them in
// reverse order when a later step fails. A nil compensator ignores pushes,
// which is what transactional runs use.
type compensator struct {
	operation string
	steps     []undoStep
}

func newCompensator(operation string) *compensator {
	return &compensator{operation: operation}
}

func (c *compensator) push(name string, undo func(ctx context.Context) error) {
	if c == nil {
		return
	}
	c.steps = append(c.steps, undoStep{name: name, undo: undo})
}

// rollback undoes every recorded step and returns cause, or a
// *CompensationError wrapping cause when an undo step failed.
func (c *compensator) rollback(ctx context.Context, cause error) error {
	if c == nil || len(c.steps) == 0 {
		return cause
	}
	// compensation must run even when the caller has gone away
	ctx = context.WithoutCancel(ctx)

	var failures []error
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"operation": c.operation,
				"step":      step.name,
				"cause":     cause.Error(),
			}).Errorf("compensation step failed: %v", err)
			failures = append(failures, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		utils.InfoLogger.WithFields(logrus.Fields{
			"operation": c.operation,
			"step":      step.name,
		}).Info("compensation step applied")
	}
	c.steps = nil

	if len(failures) == 0 {
		return cause
	}
	return &CompensationError{Err: cause, Failures: failures}
}

// eventBuffer holds events raised inside a transaction until it commits.
type eventBuffer struct {
	pending []events.Event
}

func (b *eventBuffer) Publish(_ context.Context, event events.Event) {
	b.pending = append(b.pending, event)
}

func (b *eventBuffer) flush(ctx context.Context, to events.Publisher) {
	for _, e := range b.pending {
		to.Publish(ctx, e)
	}
	b.pending = nil
}
