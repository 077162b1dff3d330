package main

import (
	"context"
	"fmt"

	"field-service/internal/archive"
	"field-service/internal/config"
	"field-service/internal/database"
	"field-service/internal/lock"
	"field-service/internal/metrics"
	"field-service/internal/notify"
	"field-service/internal/reports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application собирает всё, что нужно командам serve и render.
type application struct {
	db       *gorm.DB
	manager  *reports.Manager
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	closers  []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	db, err := database.Open(cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}
	app := &application{db: db}
	if sqlDB, err := db.DB(); err == nil {
		app.closers = append(app.closers, func() { _ = sqlDB.Close() })
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New(app.registry)

	tmpl, err := reports.LoadTemplate(cfg.ReportTemplate)
	if err != nil {
		app.Close()
		return nil, err
	}

	repo := database.NewReports(db)
	renderer := reports.NewRenderer(repo, reports.NewChromeRasterizer(cfg.ChromePath), tmpl, cfg.RenderTimeout, app.metrics, log.Named("renderer"))
	store := reports.NewStore(cfg.ReportsDir, renderer, log.Named("store"))

	deps := reports.Deps{
		Reports:          repo,
		Users:            database.NewUsers(db),
		Store:            store,
		Compositor:       reports.NewCompositor(reports.ParseAnchors(tmpl)),
		Audit:            database.NewAuditLog(db),
		Metrics:          app.metrics,
		Log:              log.Named("reports"),
		AdminEmail:       cfg.AdminEmail,
		SignaturePageURL: cfg.SignaturePageURL,
	}

	// необязательные зависимости подключаются, только если настроены
	if cfg.SMTPHost != "" {
		mailer, err := notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, log.Named("mail"))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init mailer: %w", err)
		}
		deps.Notifier = mailer
	} else {
		log.Warn("SMTP_HOST is not set, signature emails are disabled")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		deps.Locker = lock.NewRedisLocker(client, 2*cfg.RenderTimeout, log.Named("lock"))
		log.Info("using redis report locks", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.MinIOEndpoint != "" {
		bucket, err := archive.NewMinIO(archive.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, log.Named("archive"))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init minio: %w", err)
		}
		if err := bucket.EnsureBucket(ctx); err != nil {
			app.Close()
			return nil, err
		}
		deps.Archiver = bucket
	}

	app.manager = reports.NewManager(deps)
	return app, nil
}
