// Package app wires the CarePing modules together and runs the service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BTreeMap/CarePing/internal/classify"
	"github.com/BTreeMap/CarePing/internal/config"
	"github.com/BTreeMap/CarePing/internal/engine"
	"github.com/BTreeMap/CarePing/internal/lockfile"
	"github.com/BTreeMap/CarePing/internal/messaging"
	"github.com/BTreeMap/CarePing/internal/scheduler"
	"github.com/BTreeMap/CarePing/internal/store"
	"github.com/BTreeMap/CarePing/internal/twiliosms"
	"github.com/BTreeMap/CarePing/internal/whatsapp"
)

// Opts holds configuration options for the application.
type Opts struct {
	ConfigPath string
	StateDir   string
	DBDSN      string
	UseTwilio  bool // deliver escalations over Twilio SMS instead of the chat channel
}

// Option defines a configuration option for the application.
type Option func(*Opts)

// WithConfigPath sets the roster file path.
func WithConfigPath(path string) Option {
	return func(o *Opts) { o.ConfigPath = path }
}

// WithStateDir sets the state directory used for the process lock.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// WithDBDSN sets the audit store DSN. Empty keeps the in-memory store.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) { o.DBDSN = dsn }
}

// WithTwilioEscalation routes escalation notices through Twilio SMS.
func WithTwilioEscalation() Option {
	return func(o *Opts) { o.UseTwilio = true }
}

// Run builds every module, starts the engine, and blocks until SIGINT or
// SIGTERM.
func Run(waOpts []whatsapp.Option, opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ConfigPath == "" {
		return fmt.Errorf("config path not set")
	}

	roster, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("failed to acquire process lock: %w", err)
	}
	defer lock.Release()

	audit, err := buildAuditStore(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer audit.Close()

	classifier, err := classify.New(roster.MeasureTypes, classify.Options{
		NegationStems:   roster.NegationStems,
		ShortAcks:       roster.ShortAcks,
		ConfirmStems:    roster.ConfirmStems,
		MeasureKeywords: roster.MeasureKeywords,
	})
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	waClient, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return fmt.Errorf("failed to create WhatsApp client: %w", err)
	}
	svc := messaging.NewWhatsAppService(waClient)

	var notifier engine.Notifier
	if cfg.UseTwilio {
		twilioClient, err := twiliosms.NewClient()
		if err != nil {
			return fmt.Errorf("failed to create Twilio client: %w", err)
		}
		notifier = twilioClient
		slog.Info("App escalation notices routed over Twilio SMS")
	} else {
		notifier = messaging.NewEscalationNotifier(svc)
		slog.Info("App escalation notices routed over the chat channel")
	}

	sched := scheduler.NewScheduler(roster.Location())
	defer sched.Stop()
	timer := engine.NewSimpleTimer()
	instances := store.NewInstanceStore()
	messenger := messaging.NewSubjectMessenger(svc)

	eng := engine.New(roster, classifier, instances, audit, messenger, notifier, timer, sched, nil)

	router := messaging.NewRouter(svc, eng)
	for i := range roster.Subjects {
		s := &roster.Subjects[i]
		if err := router.RegisterSubject(s.Channel, s.ID); err != nil {
			return fmt.Errorf("failed to register subject %s: %w", s.ID, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	go router.Run(ctx)

	slog.Info("App running", "subjects", len(roster.Subjects))
	<-ctx.Done()

	slog.Info("App shutting down")
	eng.Stop()
	if err := svc.Stop(); err != nil {
		slog.Error("App messaging service stop failed", "error", err)
	}
	return nil
}

// buildAuditStore picks the audit backend from the DSN: empty keeps events in
// memory, PostgreSQL connection strings use lib/pq, anything else is a SQLite
// file path.
func buildAuditStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Debug("App using in-memory audit store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("App using PostgreSQL audit store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("App using SQLite audit store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}
