package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"opd-desk/internal/config"
	"opd-desk/internal/daily"
	"opd-desk/internal/desk"
	"opd-desk/internal/identity"
	"opd-desk/internal/live"
	"opd-desk/internal/metrics"
	"opd-desk/internal/mirror"
	"opd-desk/internal/registration"
	"opd-desk/internal/store"
)

// app is everything both commands share: the store, the live mirror and the projector.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	backend   *config.Backend
	registry  *prometheus.Registry
	metrics   *metrics.DeskMetrics
	mirror    *mirror.Mirror
	bridge    *mirror.Bridge
	projector *daily.Projector
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	backend, err := config.ConnectStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dm := metrics.NewDeskMetrics(reg)

	m := mirror.New()
	return &app{
		cfg:       cfg,
		log:       log,
		backend:   backend,
		registry:  reg,
		metrics:   dm,
		mirror:    m,
		bridge:    mirror.NewBridge(backend.Store, m, log, dm),
		projector: daily.NewProjector(loc, cfg.DisplayDateLayout),
	}, nil
}

func (a *app) store() store.Store { return a.backend.Store }

// newDesk wires the form controller on top of the mirror. Idle terminals are swept
// until stop is closed.
func (a *app) newDesk(stop <-chan struct{}) (*desk.Desk, error) {
	policy, err := identity.ParsePolicy(a.cfg.IDPolicy)
	if err != nil {
		return nil, err
	}

	reconciler := registration.NewReconciler(a.store(), a.mirror, a.projector.Keys, a.cfg.AtomicRegistration)

	opts := desk.Options{
		WriteTimeout: a.cfg.WriteTimeout,
		SessionIdle:  a.cfg.SessionIdle,
		Stop:         stop,
		Metrics:      a.metrics,
		Logger:       a.log,
	}
	if a.backend.Notifier != nil {
		opts.Notifier = a.backend.Notifier
	}

	a.log.Info().
		Str("id_policy", string(policy)).
		Bool("atomic", a.cfg.AtomicRegistration).
		Dur("write_timeout", a.cfg.WriteTimeout).
		Msg("desk ready")
	return desk.New(a.mirror, identity.NewAssigner(policy), reconciler, opts), nil
}

// follow pushes the projected list to connected terminals on every snapshot.
func (a *app) follow(hub *live.Hub) {
	hub.Follow(a.bridge, a.projector, nowFunc)
}

func (a *app) close() {
	if err := a.store().Close(); err != nil {
		a.log.Error().Err(err).Msg("close store")
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, warning, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log := config.NewLogger(cfg)
	if warning != "" {
		log.Warn().Msg(warning)
	}
	return cfg, log, nil
}
