package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"ytoutlier/internal/scheduler"
	"ytoutlier/internal/server"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sync due channels on a schedule and serve health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, "serve", true)
			if err != nil {
				return err
			}
			defer a.Close()

			a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			syncer := a.syncer()

			sched, err := scheduler.NewService(syncer, a.cfg.Schedule, a.cfg.DueLimit, a.log)
			if err != nil {
				return err
			}
			sched.Start()
			if runNow {
				sched.RunNow()
			}

			srv := &http.Server{
				Addr:         a.cfg.ListenAddr,
				Handler:      server.New(syncer, a.store, a.registry, a.log).Handler(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: a.cfg.ChannelTimeout + 15*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				a.log.Info().Str("addr", srv.Addr).Str("schedule", a.cfg.Schedule).Msg("serving")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case <-ctx.Done():
			case err = <-errc:
			}

			a.log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				a.log.Error().Err(serr).Msg("server forced to shut down")
			}
			sched.Stop(shutdownCtx)
			return err
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "sync due channels immediately on startup")
	return cmd
}
