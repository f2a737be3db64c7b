// Package archive writes bus events to object storage, keyed by correlation id.
package archive

import (
	"context"
	"encoding/json"

	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/storage"
)

// Handler archives storage events.
type Handler struct {
	store  storage.ObjectStore
	bucket string
	acl    string
	log    logger.Logger
}

// New creates a handler writing to bucket. An empty bucket is reported on
// every event rather than at construction, so the function still deploys.
func New(store storage.ObjectStore, bucket, acl string, log logger.Logger) *Handler {
	return &Handler{store: store, bucket: bucket, acl: acl, log: log}
}

// Archive writes the full event as JSON to <bucket>/<correlationId>.
func (h *Handler) Archive(ctx context.Context, raw json.RawMessage) (string, error) {
	if h.bucket == "" {
		return "", errs.Configuration("BUCKET_NAME is undefined").WithHint("set BUCKET_NAME to the archive bucket")
	}

	evt, err := contracts.DecodeBusEvent(raw)
	if err != nil {
		return "", err
	}
	detail, err := evt.Stored()
	if err != nil {
		return "", err
	}

	h.log.Info("Archiving event", "correlationId", detail.CorrelationID)

	err = h.store.PutObject(ctx, storage.PutInput{
		Bucket:      h.bucket,
		Key:         detail.CorrelationID,
		Body:        raw,
		ContentType: "application/json",
		ACL:         h.acl,
	})
	if err != nil {
		return "", err
	}
	return detail.CorrelationID, nil
}

// Handle archives the event, logging the outcome. Errors are never returned.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) error {
	key, err := h.Archive(ctx, raw)
	if err != nil {
		h.log.Error(err.Error(), "error", err, "kind", errs.KindOf(err), "event", rawOrString(raw))
		return nil
	}
	h.log.Info("Processed event", "key", key, "event", raw)
	return nil
}

func rawOrString(raw json.RawMessage) any {
	if json.Valid(raw) {
		return raw
	}
	return string(raw)
}
