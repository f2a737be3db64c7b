package platform

import (
	"context"
	"fmt"
	"os"

	"stackline/src/agents"
	"stackline/src/alerting"
	"stackline/src/archive"
	"stackline/src/config"
	"stackline/src/consumer"
	"stackline/src/logger"
	"stackline/src/status"
)

// StartAgents runs every event handler as an agent on p's broker and waits
// until each one is subscribed. Agents stop when ctx is done.
// Errors are written to stderr so they show up even with a silent logger.
func StartAgents(ctx context.Context, p *Platform, svc *Services, cfg *config.Config, log logger.Logger) ([]*agents.Agent, error) {
	list := []*agents.Agent{
		agents.NewConsumerAgent(p.Broker, consumer.NewEventConsumer(log), log),
		agents.NewArchiveAgent(p.Broker, archive.New(svc.Objects, svc.ArchiveBucket, cfg.ArchiveACL, log), log),
		agents.NewStatusAgent(p.Broker, status.New(p.Store, svc.Reporter, log, status.WithContext(cfg.StatusContext)), log),
		agents.NewAlertingAgent(p.Broker, alerting.New(svc.Secrets, cfg.SlackSecretID, log), log),
		agents.NewDeadLetterAgent(p.Broker, consumer.NewDeadLetterConsumer(log), log),
	}

	failed := make(chan error, len(list))
	for _, a := range list {
		go func(a *agents.Agent) {
			if err := a.Run(ctx); err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "[Platform] %s agent error: %v\n", a.Name(), err)
				failed <- fmt.Errorf("%s agent: %w", a.Name(), err)
			}
		}(a)
	}

	for _, a := range list {
		select {
		case <-a.Ready():
		case err := <-failed:
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return list, nil
}
