package platform

import (
	"context"
	"fmt"

	"stackline/src/broker"
	"stackline/src/config"
	"stackline/src/logger"
	"stackline/src/store"
)

func openDistributedBroker(cfg *config.Config, log logger.Logger) (broker.Broker, error) {
	b, err := broker.NewRedpandaBroker(cfg.RedpandaBrokers, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redpanda broker: %w", err)
	}
	return b, nil
}

func openPostgresStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	s, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create Postgres store: %w", err)
	}
	return s, nil
}
