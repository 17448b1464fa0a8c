package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"annmerge/export"
	"annmerge/importer"
	"annmerge/library"
	"annmerge/merge"
	"annmerge/migrate"
	"annmerge/state"
)

func newEngine(env *state.LocalEnv) *merge.Engine {
	return merge.New(&env.Cfg.Appearance, env.Rpt, env.Log)
}

func newImporter(env *state.LocalEnv) (*importer.Importer, error) {
	lib, err := env.OpenLibrary()
	if err != nil {
		return nil, err
	}
	return importer.New(env.Cfg, lib, newEngine(env), env.Claims, env.Log), nil
}

func logSummary(log *zap.Logger, sum *importer.Summary) {
	log.Info(sum.String())
	for _, err := range multierr.Errors(sum.Errors) {
		log.Warn("Book not updated", zap.Error(err))
	}
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() == 0 {
		return errors.New("no source dump specified")
	}

	imp, err := newImporter(env)
	if err != nil {
		return err
	}
	var errs error
	for _, src := range cmd.Args().Slice() {
		sum, err := imp.Run(ctx, src)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unable to import '%s': %w", src, err))
			continue
		}
		logSummary(env.Log, sum)
	}
	return errs
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	dir := cmd.Args().Get(0)
	if len(dir) == 0 {
		dir = env.Cfg.Import.WatchDir
	}
	if len(dir) == 0 {
		return errors.New("no directory to watch, set import.watch_dir or specify DIRECTORY")
	}

	imp, err := newImporter(env)
	if err != nil {
		return err
	}
	w := imp.Start(ctx)
	defer w.Stop()

	err = importer.Watch(ctx, dir, w, cmd.Duration("settle"), func(res importer.Result) {
		if res.Err != nil {
			env.Log.Error("Unable to import", zap.String("source", res.Source), zap.Error(res.Err))
			return
		}
		logSummary(env.Log, res.Summary)
	})
	if err != nil {
		return err
	}
	env.Log.Info("Watch stopped", zap.String("dir", dir))
	return nil
}

// logSink reports migration progress to the log.
type logSink struct {
	log     *zap.Logger
	label   string
	max     int
	current int
}

func (s *logSink) SetMaximum(n int)      { s.max = n }
func (s *logSink) SetLabel(label string) { s.label = label }

func (s *logSink) Increment() {
	s.current++
	s.log.Debug("Progress", zap.String("label", s.label), zap.Int("done", s.current), zap.Int("total", s.max))
}

// bookIDs returns ids given on command line starting with argument first, or
// all books with annotations in the field when none given.
func bookIDs(ctx context.Context, cmd *cli.Command, lib *library.Library, first int, field string) ([]int64, error) {
	args := cmd.Args().Slice()
	if len(args) <= first {
		return library.ExistingAnnotations(ctx, lib, field, true)
	}
	ids := make([]int64, 0, len(args)-first)
	for _, arg := range args[first:] {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("malformed book id '%s'", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fieldOrDestination(env *state.LocalEnv, cmd *cli.Command, flag string) string {
	if name := cmd.String(flag); len(name) > 0 {
		return name
	}
	return env.Cfg.Library.Destination
}

func move(ctx context.Context, cmd *cli.Command, from, to string) error {
	env := state.EnvFromContext(ctx)

	lib, err := env.OpenLibrary()
	if err != nil {
		return err
	}
	ids, err := bookIDs(ctx, cmd, lib, 0, from)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		env.Log.Info("No annotations found", zap.String("field", lib.FriendlyName(ctx, from)))
		return nil
	}

	m := migrate.New(newEngine(env), lib, env.Claims, env.Log)
	rep, err := m.Move(ctx, ids, from, to, &logSink{log: env.Log})
	if rep != nil {
		for _, er := range multierr.Errors(rep.Errors) {
			env.Log.Warn("Book not updated", zap.Error(er))
		}
	}
	return err
}

func runMove(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	return move(ctx, cmd, cmd.String("from"), fieldOrDestination(env, cmd, "to"))
}

func runRerender(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	name := fieldOrDestination(env, cmd, "field")
	return move(ctx, cmd, name, name)
}

func runCount(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	lib, err := env.OpenLibrary()
	if err != nil {
		return err
	}
	name := fieldOrDestination(env, cmd, "field")
	ids, err := library.ExistingAnnotations(ctx, lib, name, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%d books with annotations in %s\n", len(ids), lib.FriendlyName(ctx, name))
	return nil
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	dir := cmd.Args().Get(0)
	if len(dir) == 0 {
		return errors.New("no destination directory specified")
	}
	lib, err := env.OpenLibrary()
	if err != nil {
		return err
	}
	name := fieldOrDestination(env, cmd, "field")
	ids, err := bookIDs(ctx, cmd, lib, 1, name)
	if err != nil {
		return err
	}

	n, err := export.New(lib, env.Cfg.Appearance.SortKey, env.Log).Export(ctx, ids, name, dir)
	env.Log.Info("Annotations exported", zap.Int("books", n), zap.String("dir", dir))
	return err
}
