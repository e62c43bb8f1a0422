package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/hotpatch/pkg/logging"
)

const shutdownTimeout = 5 * time.Second

// runWatchMode subscribes every resource and runs the transport until ctx
// ends or SIGINT/SIGTERM arrives.
func runWatchMode(ctx context.Context, services *Services, opts WatchOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, res := range services.Resources {
		unsubscribe := services.Reconciler.Subscribe(ctx, res, services.printer.update)
		defer unsubscribe()
	}

	if services.spinner != nil {
		services.spinner.Start()
		defer services.spinner.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return services.Client.Run(ctx, services.Reconciler)
	})

	logging.Info("Watch", "Watching %d resources. Press Ctrl+C to stop.", len(services.Resources))
	err := g.Wait()
	logging.Info("Watch", "Stopped watching")
	return err
}

// runServeMode runs the HTTP listener and the spool watcher until ctx ends
// or SIGINT/SIGTERM arrives.
func runServeMode(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", services.HTTPServer.Addr)
	if err != nil {
		return err
	}
	addr := ln.Addr().String()
	logging.Info("Serve", "Update socket listening on ws://%s/hmr", addr)
	if services.onListen != nil {
		services.onListen(addr)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := services.HTTPServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if services.Spool != nil {
		if err := services.Spool.Start(ctx); err != nil {
			_ = services.HTTPServer.Close()
			_ = g.Wait()
			return err
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		logging.Info("Serve", "Shutting down")

		if services.Spool != nil {
			services.Spool.Stop()
		}
		services.Server.Close()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return services.HTTPServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
