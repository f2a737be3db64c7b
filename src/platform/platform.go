// Package platform wires the broker, the execution store and the AWS-backed
// services for the CLI, the HTTP gateway and the MCP server.
//
// It supports two modes:
//   - Local mode: in-memory broker and store, everything in one process (default)
//   - Distributed mode: Redpanda + Postgres, agents may run anywhere
//
// Mode is detected from the configuration: REDPANDA_BROKERS selects the
// distributed broker and POSTGRES_DSN the Postgres store.
package platform

import (
	"context"
	"errors"

	"stackline/src/broker"
	"stackline/src/config"
	"stackline/src/logger"
	"stackline/src/store"
)

// Mode selects the platform implementation.
type Mode int

const (
	// LocalMode keeps the broker and store in memory.
	LocalMode Mode = iota
	// DistributedMode uses Redpanda and Postgres.
	DistributedMode
)

func (m Mode) String() string {
	if m == DistributedMode {
		return "distributed"
	}
	return "local"
}

// DetectMode picks distributed mode when brokers are configured.
func DetectMode(cfg *config.Config) Mode {
	if cfg.UseRedpanda() {
		return DistributedMode
	}
	return LocalMode
}

// Platform holds the shared broker and execution store.
type Platform struct {
	Mode   Mode
	Broker broker.Broker
	Store  store.Store
}

// Open connects the broker and store for cfg. A Postgres DSN is honored in
// either mode so local runs can keep their history.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Platform, error) {
	mode := DetectMode(cfg)

	var (
		b   broker.Broker
		err error
	)
	if mode == DistributedMode {
		b, err = openDistributedBroker(cfg, log)
		if err != nil {
			return nil, err
		}
	} else {
		b = broker.NewInMemoryBroker()
	}

	var s store.Store = store.NewMemoryStore()
	if cfg.UsePostgres() {
		s, err = openPostgresStore(ctx, cfg)
		if err != nil {
			b.Close()
			return nil, err
		}
	}

	log.Debug("platform opened", "mode", mode.String(), "postgres", cfg.UsePostgres())
	return &Platform{Mode: mode, Broker: b, Store: s}, nil
}

// Close shuts down the broker and the store.
func (p *Platform) Close() error {
	return errors.Join(p.Broker.Close(), p.Store.Close())
}
