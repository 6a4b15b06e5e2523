package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	intconfig "fleetops/internal/config"
	api "fleetops/internal/http"
	"fleetops/internal/http/handlers"
	"fleetops/internal/http/middleware"
	"fleetops/internal/latesttrip"
	"fleetops/internal/logging"
	"fleetops/internal/repositories"
)

func main() {
	env := intconfig.LoadEnv()
	logger := logging.New(os.Stderr, env.LogFormat, env.LogLevel)

	rootCmd := &cobra.Command{
		Use:           "fleetops",
		Short:         "Trip service keeping each vehicle's latest trip in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("sync-config", env.SyncConfigPath, "latest-trip tuning file (YAML)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			syncPath, _ := cmd.Flags().GetString("sync-config")
			env.AppAddr = addr

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, logger, env, syncPath)
		},
	}
	serveCmd.Flags().String("addr", env.AppAddr, "listen address (host:port)")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile [vehicle-number...]",
		Short: "Recompute latest-trip pointers now (all vehicles when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncPath, _ := cmd.Flags().GetString("sync-config")
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return reconcileNow(ctx, logger, env, syncPath, args)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the trips and vehicles tables when missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info("schema ready", "driver", env.DBDriver)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, reconcileCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func openDB(ctx context.Context, env intconfig.Env) (*sql.DB, error) {
	db, err := intconfig.OpenDB(ctx, env)
	if err != nil {
		return nil, err
	}
	if err := repositories.EnsureSchema(ctx, db, env.DBDriver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newEngine(db *sql.DB, syncPath string, logger *slog.Logger) (*latesttrip.Engine, intconfig.Sync, latesttrip.Config, error) {
	syncCfg, err := intconfig.LoadSync(syncPath)
	if err != nil {
		return nil, syncCfg, latesttrip.Config{}, err
	}
	cfg, err := syncCfg.Engine()
	if err != nil {
		return nil, syncCfg, cfg, err
	}
	engine := latesttrip.New(repositories.TripRepository{DB: db}, repositories.VehicleRepository{DB: db}, cfg, logger)
	return engine, syncCfg, cfg, nil
}

func serve(ctx context.Context, logger *slog.Logger, env intconfig.Env, syncPath string) error {
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	db, err := openDB(ctx, env)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected", "driver", env.DBDriver)

	engine, syncCfg, cfg, err := newEngine(db, syncPath, logger)
	if err != nil {
		return err
	}

	var sweeper *latesttrip.Sweeper
	if syncCfg.SweepCron != "" {
		sweeper, err = latesttrip.NewSweeper(engine, syncCfg.SweepCron, logger)
		if err != nil {
			return err
		}
		sweeper.Start()
	}

	// Fan-out endpoints: 1 request/s per client with bursts of 5.
	limiter := middleware.NewIPRateLimiter(rate.Every(time.Second), 5)
	var bg sync.WaitGroup
	bgCtx, stopBG := context.WithCancel(context.Background())
	limiter.StartCleanup(bgCtx, &bg, time.Minute, 10*time.Minute)

	hs := handlers.New(db, engine, cfg.Location, logger)
	hs.Dialect = env.DBDriver
	r := api.NewRouter(env, hs, limiter, logger)
	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	errs := []error{serveErr}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop sweeper: %w", err))
		}
	}
	if err := engine.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("close latest-trip engine: %w", err))
	}
	stopBG()
	bg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func reconcileNow(ctx context.Context, logger *slog.Logger, env intconfig.Env, syncPath string, vehicles []string) error {
	db, err := openDB(ctx, env)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, _, _, err := newEngine(db, syncPath, logger)
	if err != nil {
		return err
	}

	if len(vehicles) == 0 {
		vehicles, err = repositories.VehicleRepository{DB: db}.ListVehicleNumbers(ctx)
		if err != nil {
			return err
		}
	}
	res := engine.SyncBatch(ctx, vehicles)

	// Failed vehicles were queued for retry; let those finish.
	closeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	closeErr := engine.Close(closeCtx)

	health := engine.Health()
	fmt.Printf("synced=%d failed=%d requeued_ok=%d abandoned=%d\n",
		len(res.Synced), len(res.Failed), health.Queue.Completed, health.Queue.Abandoned)
	if closeErr != nil {
		return closeErr
	}
	if health.Queue.Abandoned > 0 {
		return fmt.Errorf("%d reconciliation job(s) abandoned", health.Queue.Abandoned)
	}
	return nil
}
