// Package alerting forwards notifications to a chat webhook.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/secrets"
)

// WebhookField is the key of the webhook URL inside the secret's JSON.
const WebhookField = "SLACK_WEBHOOK_URL"

// Notifier posts notification text to the webhook stored in a secret.
type Notifier struct {
	secrets    secrets.Provider
	secretID   string
	httpClient *http.Client
	log        logger.Logger
}

// New creates a Notifier reading the webhook URL from secretID.
func New(provider secrets.Provider, secretID string, log logger.Logger) *Notifier {
	return &Notifier{
		secrets:    provider,
		secretID:   secretID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Notify posts every notification concurrently. Any failed post fails the
// whole call.
func (n *Notifier) Notify(ctx context.Context, notifications []contracts.Notification) error {
	if n.secretID == "" {
		return errs.Configuration("AWS_SECRETS_SLACK is undefined")
	}

	url, err := secrets.GetField(ctx, n.secrets, n.secretID, WebhookField)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, msg := range notifications {
		g.Go(func() error {
			if err := n.post(gctx, url, msg.Message); err != nil {
				return err
			}
			n.log.Info("Processed notification record", "messageId", msg.MessageID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	n.log.Info("Processed notification", "records", len(notifications))
	return nil
}

// HandleSNS forwards an SNS batch. Failures are logged and not returned.
func (n *Notifier) HandleSNS(ctx context.Context, event events.SNSEvent) error {
	if err := n.Notify(ctx, FromSNS(event)); err != nil {
		n.log.Error(err.Error(), "error", err, "kind", errs.KindOf(err), "records", len(event.Records))
	}
	return nil
}

// FromSNS converts SNS records to notifications.
func FromSNS(event events.SNSEvent) []contracts.Notification {
	out := make([]contracts.Notification, 0, len(event.Records))
	for _, r := range event.Records {
		out = append(out, contracts.Notification{
			MessageID: r.SNS.MessageID,
			Subject:   r.SNS.Subject,
			Message:   r.SNS.Message,
			Timestamp: r.SNS.Timestamp,
		})
	}
	return out
}

func (n *Notifier) post(ctx context.Context, url, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "invalid webhook URL")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errs.Upstream("PostWebhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errs.Upstream("PostWebhook", fmt.Errorf("webhook error %d: %s", resp.StatusCode, string(respBody)))
	}
	return nil
}
