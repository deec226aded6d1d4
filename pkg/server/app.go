package server

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	xhttp "FinGAN/pkg/http"
	applogger "FinGAN/pkg/logger"
)

// Worker is a background component whose Start returns once it is running,
// such as the training queue.
type Worker interface {
	Start() error
	Stop(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	workers         []Worker
	closers         []io.Closer
	shutdownTimeout time.Duration
}

// New creates an App. httpServer may be nil for headless processes.
func New(l *applogger.Logger, httpServer *xhttp.Server, shutdownTimeout time.Duration) *App {
	if l == nil {
		l = applogger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &App{log: l, httpServer: httpServer, shutdownTimeout: shutdownTimeout}
}

// AddWorker registers a worker started before the HTTP server.
func (a *App) AddWorker(w Worker) { a.workers = append(a.workers, w) }

// AddCloser registers infrastructure released on shutdown, in reverse order.
func (a *App) AddCloser(c io.Closer) { a.closers = append(a.closers, c) }

// Run starts every component and blocks until ctx is done or a component
// fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	started := 0
	for _, w := range a.workers {
		if err := w.Start(); err != nil {
			a.workers = a.workers[:started]
			return errors.Join(err, a.shutdown())
		}
		started++
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.httpServer != nil {
		g.Go(a.httpServer.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutdown signal received")
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.workers) - 1; i >= 0; i-- {
		if err := a.workers[i].Stop(ctx); err != nil {
			a.log.Warn("worker stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
