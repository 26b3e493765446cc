package services

import (
	"context"
)

func (m *Manager) Shutdown(ctx context.Context) {
	if m.server != nil {
		m.log.Info("stopping http server")
		if err := m.server.Shutdown(ctx); err != nil {
			m.log.Error("http server shutdown", "err", err)
		}
	}

	if m.natsConn != nil {
		m.log.Info("closing nats connection")
		m.natsConn.Close()
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.log.Error("closing storage", "err", err)
		}
	}
}
