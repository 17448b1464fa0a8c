// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"annmerge/config"
	"annmerge/library"
	"annmerge/staging"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger
	Lib *library.Library

	// Claims is shared by all staging sessions of the process.
	Claims *staging.Claims

	start         time.Time
	restoreStdLog func()
}

func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		Claims: staging.NewClaims(),
		start:  time.Now(),
	}
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// OpenLibrary opens configured library database once, subsequent calls
// return the same handle.
func (e *LocalEnv) OpenLibrary() (*library.Library, error) {
	if e.Lib != nil {
		return e.Lib, nil
	}
	lib, err := library.Open(e.Cfg.Library.Path, e.Log)
	if err != nil {
		return nil, err
	}
	e.Lib = lib
	return lib, nil
}

// Close releases library database if it was opened.
func (e *LocalEnv) Close() error {
	if e.Lib == nil {
		return nil
	}
	err := e.Lib.Close()
	e.Lib = nil
	return err
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
