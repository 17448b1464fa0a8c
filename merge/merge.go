// Package merge reconciles staged annotations with content already stored
// in a library field.
package merge

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"annmerge/annotation"
	"annmerge/common"
	"annmerge/config"
	"annmerge/field"
	"annmerge/render"
)

// FieldStore is the part of the library merge engine writes through.
type FieldStore interface {
	Field(ctx context.Context, id int64, name string) (string, error)
	SetField(ctx context.Context, id int64, name, value string) error
}

// Engine merges annotations into field content. Engine is immutable and
// safe for concurrent use.
type Engine struct {
	renderer *render.Renderer
	sortKey  common.SortKey
	legacy   common.LegacyPolicy
	field    string
	rpt      *config.Report
	log      *zap.Logger
}

// New creates engine rendering with the given appearance. Report may be nil.
func New(cfg *config.AppearanceConfig, rpt *config.Report, log *zap.Logger) *Engine {
	return &Engine{
		renderer: render.New(cfg, log),
		sortKey:  cfg.SortKey,
		legacy:   cfg.Legacy,
		field:    config.CommentsField,
		rpt:      rpt,
		log:      log.Named("merge"),
	}
}

// ForField returns engine producing content for the named field.
func (e *Engine) ForField(name string) *Engine {
	c := *e
	c.field = name
	c.renderer = e.renderer.ForField(name)
	return &c
}

// Renderer returns renderer used by the engine.
func (e *Engine) Renderer() *render.Renderer {
	return e.renderer
}

// Result of a merge.
type Result struct {
	Content string
	// Changed is false when Content is identical to the input.
	Changed bool
	// Annotations is number of annotations in the resulting container.
	Annotations int
	// Legacy is number of preserved nodes which could not be decomposed
	// into annotations.
	Legacy int
	// Found is set when input had annotation container.
	Found bool
	// Opaque is set when input had container which could not be parsed.
	Opaque bool

	split field.Result
}

// Merge produces new field content: user text of raw is kept verbatim and
// followed by a single container holding union of previously rendered and
// staged annotations. Merging the same staged set again yields identical
// content.
func (e *Engine) Merge(bookID int64, raw string, staged []annotation.Annotation) (Result, error) {
	return e.merge(bookID, raw, staged, nil)
}

// MergeCarried is Merge for content moved from another field: carried
// nodes which could not be decomposed into annotations there are kept after
// the ones already present in raw.
func (e *Engine) MergeCarried(bookID int64, raw string, staged []annotation.Annotation, carried []*html.Node) (Result, error) {
	return e.merge(bookID, raw, staged, carried)
}

func (e *Engine) merge(bookID int64, raw string, staged []annotation.Annotation, carried []*html.Node) (Result, error) {
	split := field.Split(raw)
	res := Result{Found: split.Subtree != nil, Opaque: split.Opaque, split: split}
	if split.Opaque {
		e.log.Warn("Field has unterminated annotation container, leaving it as is", zap.Int64("book", bookID))
	}

	existing := split.Subtree.Annotations(bookID)
	legacy := append(split.Subtree.Legacy(), carried...)
	if len(legacy) > 0 && e.legacy == common.LegacyPolicyReplace {
		e.log.Info("Dropping legacy annotations", zap.Int64("book", bookID), zap.Int("nodes", len(legacy)))
		legacy = nil
	}

	incoming := make([]annotation.Annotation, 0, len(staged))
	for _, a := range staged {
		a.BookID = bookID
		a.Clean()
		if a.Empty() {
			continue
		}
		incoming = append(incoming, a)
	}
	list := annotation.Union(existing, incoming)
	annotation.Sort(list, e.sortKey)

	res.Annotations, res.Legacy = len(list), len(legacy)
	if len(list) == 0 && len(legacy) == 0 {
		res.Content = split.Residual
		res.Changed = res.Content != raw
		return res, nil
	}

	container, err := e.renderer.Render(bookID, list, legacy...)
	if err != nil {
		return res, err
	}

	var b strings.Builder
	residual := strings.TrimRightFunc(split.Residual, unicode.IsSpace)
	b.Grow(len(residual) + len(container) + 128)
	b.WriteString(residual)
	if residual != "" {
		b.WriteString(e.renderer.Divider())
	}
	b.WriteString(container)

	res.Content = b.String()
	res.Changed = res.Content != raw
	return res, nil
}

// MergeBook reads destination field of the book, merges staged annotations
// into it and writes result back with a single write. Nothing is written
// when content did not change.
func (e *Engine) MergeBook(ctx context.Context, lib FieldStore, bookID int64, name string, staged []annotation.Annotation) (Result, error) {
	raw, err := lib.Field(ctx, bookID, name)
	if err != nil {
		return Result{}, fmt.Errorf("read field %q of book %d: %w", name, bookID, err)
	}
	res, err := e.ForField(name).Merge(bookID, raw, staged)
	if err != nil {
		return res, err
	}
	if !res.Changed {
		e.log.Debug("Field unchanged", zap.Int64("book", bookID), zap.String("field", name))
		return res, nil
	}
	e.rpt.StoreFieldChange(bookID, name, raw, res.Content, res.split.Describe)
	if err := lib.SetField(ctx, bookID, name, res.Content); err != nil {
		return res, fmt.Errorf("write field %q of book %d: %w", name, bookID, err)
	}
	e.log.Debug("Field updated", zap.Int64("book", bookID), zap.String("field", name),
		zap.Int("annotations", res.Annotations), zap.Int("legacy", res.Legacy))
	return res, nil
}
