// Package importer runs import sessions: reads adapter dumps, stages their
// records and merges them into the library.
package importer

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"annmerge/adapter"
	"annmerge/config"
	"annmerge/library"
	"annmerge/merge"
	"annmerge/staging"
)

// Library is what import sessions need from the book catalog.
type Library interface {
	merge.FieldStore
	Index(ctx context.Context) (*library.Index, error)
	ClippingsBook(ctx context.Context, title string) (int64, error)
}

// Summary of a single import session.
type Summary struct {
	Source string
	Reader string
	Books  int
	// Reported is number of annotations found in the dump, Annotations is
	// how many of them were staged.
	Reported    int
	Annotations int
	// Updated counts books whose destination field was rewritten.
	Updated int
	Failed  int
	Errors  error
}

func (s *Summary) String() string {
	return fmt.Sprintf("%s: %d of %d annotations for %d books from %s, updated %d, failed %d",
		s.Source, s.Annotations, s.Reported, s.Books, s.Reader, s.Updated, s.Failed)
}

// Importer runs import sessions. Sessions sharing claims never touch the
// same book concurrently.
type Importer struct {
	cfg    *config.Config
	lib    Library
	engine *merge.Engine
	claims *staging.Claims
	log    *zap.Logger
}

func New(cfg *config.Config, lib Library, engine *merge.Engine, claims *staging.Claims, log *zap.Logger) *Importer {
	if claims == nil {
		claims = staging.NewClaims()
	}
	return &Importer{cfg: cfg, lib: lib, engine: engine, claims: claims, log: log.Named("import")}
}

// Run imports dump file. Errors reading the dump are returned as is,
// failures of individual books are collected in the summary.
func (imp *Importer) Run(ctx context.Context, src string) (*Summary, error) {
	dump, err := adapter.Load(src, imp.cfg.Import.DefaultReader)
	if err != nil {
		return nil, err
	}
	sum, err := imp.Import(ctx, dump)
	if sum != nil {
		sum.Source = src
	}
	return sum, err
}

// Import runs one session over already loaded dump.
func (imp *Importer) Import(ctx context.Context, dump *adapter.Dump) (*Summary, error) {
	sum := &Summary{Source: "-", Reader: dump.Reader, Reported: dump.Count()}

	session, err := staging.Open(imp.claims, imp.log)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	idx, err := imp.lib.Index(ctx)
	if err != nil {
		return nil, err
	}

	for _, e := range dump.Books {
		if imp.cfg.Import.ActiveOnly && !e.Book.Active {
			imp.log.Debug("Skipping inactive book", zap.String("title", e.Book.Title))
			continue
		}
		if err := imp.stage(ctx, session, idx, e, sum); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			sum.Errors = multierr.Append(sum.Errors, err)
			imp.log.Warn("Unable to stage book", zap.String("title", e.Book.Title), zap.Error(err))
		}
	}

	books, err := session.Books()
	if err != nil {
		return sum, err
	}
	sum.Books = len(books)
	dest := imp.cfg.Library.Destination
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		staged, err := session.Annotations(b.BookID)
		if err != nil {
			return sum, err
		}
		res, err := imp.engine.MergeBook(ctx, imp.lib, b.BookID, dest, staged)
		if err != nil {
			sum.Failed++
			sum.Errors = multierr.Append(sum.Errors, err)
			imp.log.Error("Unable to merge annotations", zap.Int64("book", b.BookID), zap.Error(err))
			continue
		}
		if res.Changed {
			sum.Updated++
		}
	}
	imp.log.Debug("Import finished", zap.String("reader", sum.Reader), zap.Int("books", sum.Books),
		zap.Int("reported", sum.Reported), zap.Int("annotations", sum.Annotations), zap.Int("updated", sum.Updated), zap.Int("failed", sum.Failed))
	return sum, nil
}

// stage resolves library id of the book and puts it with its annotations
// into the session.
func (imp *Importer) stage(ctx context.Context, session *staging.Store, idx *library.Index, e adapter.Entry, sum *Summary) error {
	book := e.Book
	if book.BookID == 0 {
		if id, ok := idx.Match(&book); ok {
			book.BookID = id
		} else {
			cid, err := imp.lib.ClippingsBook(ctx, imp.cfg.Library.ClippingsTitle)
			if err != nil {
				return fmt.Errorf("clippings book for %q: %w", book.Title, err)
			}
			imp.log.Debug("Book not found in library, using clippings", zap.String("title", book.Title), zap.Int64("cid", cid))
			book.CID = cid
		}
	}
	target := book.TargetID()

	// claim before anything is staged so busy books are rejected as a whole
	if err := session.Claim(target); err != nil {
		return fmt.Errorf("%q: %w", book.Title, err)
	}
	for _, a := range e.Annotations {
		a.BookID = target
		stored, err := session.UpsertAnnotation(a)
		if err != nil {
			return fmt.Errorf("%q: %w", book.Title, err)
		}
		if stored {
			sum.Annotations++
		}
	}
	if book.CID != 0 {
		// several unmatched books share clippings entry, keep its metadata
		return nil
	}
	if err := session.UpsertBook(book); err != nil {
		return fmt.Errorf("%q: %w", book.Title, err)
	}
	return nil
}
