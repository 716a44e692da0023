package syncer

import (
	"context"
	"fmt"

	"github.com/lleo5301/sports2-backend-sub005/internal/metrics"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
)

// ItemError records a per-item failure.
type ItemError = store.ItemError

// Result is a synchronizer's summary.
type Result struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors"`
}

func newResult() *Result {
	return &Result{Errors: []ItemError{}}
}

// Failed is the number of failed items.
func (r *Result) Failed() int {
	return len(r.Errors)
}

func (r *Result) addError(itemID, entity, name string, err error) {
	r.Errors = append(r.Errors, ItemError{
		ItemID:     itemID,
		EntityType: entity,
		Name:       name,
		Message:    err.Error(),
	})
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeSkipped
)

func upserted(created bool) outcome {
	if created {
		return outcomeCreated
	}
	return outcomeUpdated
}

// fold applies fn to every item independently. A failing or panicking item
// is recorded in res and the fold moves on; only context cancellation stops
// it early.
func fold[T any](ctx context.Context, res *Result, entity string, items []T,
	ident func(T) (id, name string), fn func(context.Context, T) (outcome, error)) error {

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, name := ident(item)
		out, err := safeApply(ctx, item, fn)
		if err != nil {
			res.addError(id, entity, name, err)
			metrics.SyncItems.WithLabelValues(entity, "failed").Inc()
			continue
		}

		switch out {
		case outcomeCreated:
			res.Created++
			metrics.SyncItems.WithLabelValues(entity, "created").Inc()
		case outcomeUpdated:
			res.Updated++
			metrics.SyncItems.WithLabelValues(entity, "updated").Inc()
		case outcomeSkipped:
			res.Skipped++
		}
	}
	return nil
}

func safeApply[T any](ctx context.Context, item T, fn func(context.Context, T) (outcome, error)) (out outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx, item)
}
