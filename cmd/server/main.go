package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"field-service/internal/config"
	"field-service/internal/database"
	"field-service/internal/reports"
	"field-service/internal/server"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "field-service",
		Short: "Field service reports with engineer and customer signatures",
		// без подкоманды запускаем сервер
		RunE: func(cmd *cobra.Command, args []string) error { return runServe(cmd.Context()) },
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(renderCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error: "), err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and seed the superadmin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := initLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.Open(cfg.DBDSN, log)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := database.SeedSuperAdmin(db, cfg.SeedAdminEmail, cfg.SeedAdminPassword, log); err != nil {
				return err
			}
			fmt.Printf("schema: %s\n", color.New(color.FgGreen).Sprint("OK"))
			return nil
		},
	}
}

func renderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <report-id>",
		Short: "Re-render the unsigned PDF of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := initLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer log.Sync()

			app, err := newApplication(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			path, err := app.manager.Preview(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sum, size, err := reports.Digest(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprint("rendered"), path)
			fmt.Printf("  size:   %d bytes\n", size)
			fmt.Printf("  blake3: %s\n", color.New(color.FgYellow).Sprint(sum))
			return nil
		},
	}
}

func runServe(ctx context.Context) error {
	cfg := config.Load()

	log, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := database.Migrate(app.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := database.SeedSuperAdmin(app.db, cfg.SeedAdminEmail, cfg.SeedAdminPassword, log); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.Deps{
		Config:   cfg,
		DB:       app.db,
		Reports:  app.manager,
		Metrics:  app.metrics,
		Gatherer: app.registry,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// рендер может идти до RENDER_TIMEOUT
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RenderTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func initLogger(level, format string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}
