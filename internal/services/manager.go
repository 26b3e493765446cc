package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fiatjaf/dancing-couches/internal/api"
	"github.com/fiatjaf/dancing-couches/internal/auth"
	"github.com/fiatjaf/dancing-couches/internal/backend"
	"github.com/fiatjaf/dancing-couches/internal/config"
	"github.com/fiatjaf/dancing-couches/internal/metrics"
	"github.com/fiatjaf/dancing-couches/internal/notify"
	"github.com/fiatjaf/dancing-couches/internal/replica"
	"github.com/fiatjaf/dancing-couches/internal/storage/sqlite"
)

type Options struct {
	// ListenAddr overrides the host:port derived from config when non-empty.
	ListenAddr string
}

// Manager owns the wiring and lifecycle of the gateway's components.
type Manager struct {
	cfg  *config.Config
	opts Options
	log  *slog.Logger

	store    *sqlite.Store
	natsConn *nats.Conn
	server   *http.Server
}

func NewManager(cfg *config.Config, opts Options, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg, opts: opts, log: log}
}

// Init opens storage, connects to NATS when configured, and assembles the
// HTTP server. It does not start listening.
func (m *Manager) Init(ctx context.Context) error {
	store, err := sqlite.Open(m.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	m.store = store

	var publisher notify.Publisher = notify.Noop{}
	if m.cfg.Nats.URL != "" {
		nc, err := nats.Connect(m.cfg.Nats.URL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		m.natsConn = nc
		np, err := notify.NewNatsPublisher(nc)
		if err != nil {
			return fmt.Errorf("init nats publisher: %w", err)
		}
		if err := np.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure changes stream: %w", err)
		}
		publisher = np
	}

	client := backend.NewClient(time.Duration(m.cfg.Backend.TimeoutSeconds) * time.Second)
	mets := metrics.New()

	svc := replica.NewService(replica.Deps{
		Directory:   store.Directory(),
		Ledger:      store.Ledger(),
		Checkpoints: store.Checkpoints(),
		Locals:      store.Locals(),
		Backend:     client,
		Publisher:   publisher,
		Metrics:     mets,
		Logger:      m.log,
	})

	addr := m.opts.ListenAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", m.cfg.API.Port)
	}
	m.server = &http.Server{
		Addr:    addr,
		Handler: api.NewServer(svc, auth.NewService(client), mets.Handler()),
	}
	return nil
}

// Run serves HTTP until Shutdown is called. A closed server is not an
// error.
func (m *Manager) Run() error {
	m.log.Info("listening", "addr", m.server.Addr)
	if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
