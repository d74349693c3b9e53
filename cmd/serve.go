package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbtrial/internal/config"
	"kbtrial/internal/database"
	"kbtrial/internal/repository"
	"kbtrial/internal/router"
	"kbtrial/internal/services"
)

const shutdownTimeout = 10 * time.Second

var serveInMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the protocol to browser participants.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveInMemory, "memory", false,
		"keep results in memory only and skip the database")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(nil)
	if err != nil {
		return err
	}
	defer a.log.Sync()
	log := a.log

	protocol, err := a.loadProtocol()
	if err != nil {
		return err
	}

	var (
		repo  *repository.Repository
		store services.ResultStore
	)
	if !serveInMemory {
		db, err := database.Open(a.cfg.Database, log)
		if err != nil {
			return err
		}
		repo = repository.New(db)
		store = repo
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := services.NewRunner(log, protocol, nil, store)

	reaper := services.NewReaper(log, runner, a.cfg.Sessions.SweepInterval, a.cfg.Sessions.Retention)
	reaper.Start(ctx)
	a.store.Watch(log, func(cfg *config.Config) {
		reaper.SetRetention(cfg.Sessions.Retention)
	})

	cfg := a.cfg
	cfg.Server.AssetDirectory = resolve(cfg.Server.AssetDirectory)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Setup(log, &cfg, runner, repo),
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		log.Info("Shutting down server...")
		runner.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Server listening on http://localhost" + srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}
	<-shutdownDone
	return nil
}
