// Package migrate moves rendered annotations between library fields and
// re-renders them in place after appearance changes.
package migrate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"annmerge/field"
	"annmerge/merge"
	"annmerge/staging"
)

// ProgressSink receives progress of a batch. It is driven by a single
// goroutine running the batch.
type ProgressSink interface {
	SetMaximum(n int)
	Increment()
	SetLabel(text string)
}

type nopSink struct{}

func (nopSink) SetMaximum(int)  {}
func (nopSink) Increment()      {}
func (nopSink) SetLabel(string) {}

// Library is what migration needs from the book catalog.
type Library interface {
	Field(ctx context.Context, id int64, name string) (string, error)
	SetMetadata(ctx context.Context, id int64, fields map[string]string) error
	FriendlyName(ctx context.Context, field string) string
}

// Report summarizes a batch.
type Report struct {
	// From and To are human readable field names.
	From, To  string
	Processed int
	Modified  int
	// Skipped counts books left untouched: source field had no annotation
	// container or re-rendering produced identical content.
	Skipped int
	Failed  int
	// Errors aggregates per book failures.
	Errors error
}

// InPlace reports whether annotations were re-rendered rather than moved.
func (r *Report) InPlace() bool {
	return r.From == r.To
}

func (r *Report) String() string {
	books := "books"
	if r.Processed == 1 {
		books = "book"
	}
	var b strings.Builder
	if r.InPlace() {
		fmt.Fprintf(&b, "Annotations updated to new appearance settings for %d %s", r.Processed, books)
	} else {
		fmt.Fprintf(&b, "Annotations for %d %s moved from %s to %s", r.Processed, books, r.From, r.To)
	}
	fmt.Fprintf(&b, " (modified %d, skipped %d, failed %d)", r.Modified, r.Skipped, r.Failed)
	return b.String()
}

// Migrator moves annotation containers between fields.
type Migrator struct {
	engine *merge.Engine
	lib    Library
	claims *staging.Claims
	log    *zap.Logger
}

// New creates migrator. Claims are shared with import sessions so books
// being imported are not migrated at the same time, nil means private
// registry.
func New(engine *merge.Engine, lib Library, claims *staging.Claims, log *zap.Logger) *Migrator {
	if claims == nil {
		claims = staging.NewClaims()
	}
	return &Migrator{engine: engine, lib: lib, claims: claims, log: log.Named("migrate")}
}

// Move moves annotations of the books from one field to another, or
// re-renders them with current appearance when fields are the same. Failure
// of a book is recorded in the report and the batch continues. Only
// cancellation of ctx stops the batch, between books. Books already written
// stay in the new state.
func (m *Migrator) Move(ctx context.Context, ids []int64, from, to string, sink ProgressSink) (*Report, error) {
	if sink == nil {
		sink = nopSink{}
	}
	rep := &Report{From: m.lib.FriendlyName(ctx, from), To: m.lib.FriendlyName(ctx, to)}

	session, err := staging.Open(m.claims, m.log)
	if err != nil {
		return rep, err
	}
	defer session.Close()

	sink.SetMaximum(len(ids))
	if from == to {
		sink.SetLabel(fmt.Sprintf("Updating annotations for %d books", len(ids)))
	} else {
		sink.SetLabel(fmt.Sprintf("Moving annotations for %d books", len(ids)))
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Processed++

		modified, err := m.moveBook(ctx, session, id, from, to)
		switch {
		case err != nil:
			rep.Failed++
			rep.Errors = multierr.Append(rep.Errors, err)
			m.log.Error("Unable to move annotations", zap.Int64("book", id), zap.Error(err))
		case modified:
			rep.Modified++
			sink.Increment()
		default:
			rep.Skipped++
		}
	}
	m.log.Info(rep.String())
	return rep, nil
}

func (m *Migrator) moveBook(ctx context.Context, session *staging.Store, id int64, from, to string) (bool, error) {
	raw, err := m.lib.Field(ctx, id, from)
	if err != nil {
		return false, fmt.Errorf("book %d: %w", id, err)
	}
	split := field.Split(raw)
	if split.Subtree == nil {
		return false, nil
	}

	// annotations go through staging so duplicates from several containers
	// collapse and books busy in import sessions are refused
	if err := session.Claim(id); err != nil {
		return false, fmt.Errorf("book %d: %w", id, err)
	}
	if _, err := session.Capture(id, split.Subtree.Annotations(id)); err != nil {
		return false, fmt.Errorf("book %d: %w", id, err)
	}
	staged, err := session.Annotations(id)
	if err != nil {
		return false, fmt.Errorf("book %d: %w", id, err)
	}
	legacy := split.Subtree.Legacy()

	fields := make(map[string]string, 2)
	if from == to {
		res, err := m.engine.ForField(to).MergeCarried(id, split.Residual, staged, legacy)
		if err != nil {
			return false, fmt.Errorf("book %d: %w", id, err)
		}
		if res.Content == raw {
			return false, nil
		}
		fields[to] = res.Content
	} else {
		target, err := m.lib.Field(ctx, id, to)
		if err != nil {
			return false, fmt.Errorf("book %d: %w", id, err)
		}
		res, err := m.engine.ForField(to).MergeCarried(id, target, staged, legacy)
		if err != nil {
			return false, fmt.Errorf("book %d: %w", id, err)
		}
		fields[from] = split.Residual
		fields[to] = res.Content
	}

	if err := m.lib.SetMetadata(ctx, id, fields); err != nil {
		return false, fmt.Errorf("book %d: %w", id, err)
	}
	return true, nil
}
