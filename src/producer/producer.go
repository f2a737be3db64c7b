// Package producer turns HTTP requests into events on the bus.
package producer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/eventbus"
	"stackline/src/logger"
	"stackline/src/response"
)

// Request is the accepted request body.
type Request struct {
	Status string `json:"status"`
}

// Handler emits one event per accepted request.
type Handler struct {
	bus   eventbus.Bus
	log   logger.Logger
	newID func() string
	now   func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithIDGenerator overrides correlation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(h *Handler) { h.newID = fn }
}

// WithClock overrides the event timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(h *Handler) { h.now = fn }
}

// New creates a producer that puts events on bus.
func New(bus eventbus.Bus, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		bus:   bus,
		log:   log,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Produce validates body and puts a single event on the bus. It returns the
// bus result, or an error without emitting anything when the body is invalid.
func (h *Handler) Produce(ctx context.Context, body string) (eventbus.Result, error) {
	req, err := parse(body)
	if err != nil {
		return eventbus.Result{}, err
	}

	detail, err := json.Marshal(contracts.ProducedDetail{
		Status:        req.Status,
		CorrelationID: h.newID(),
	})
	if err != nil {
		return eventbus.Result{}, errs.Wrap(errs.KindParse, err, "event detail could not be encoded")
	}

	result, err := h.bus.PutEvents(ctx, eventbus.Entry{
		Source:     contracts.SourceProducer,
		DetailType: contracts.DetailTypeLambdaEvent,
		Detail:     detail,
		Time:       h.now(),
	})
	if err != nil {
		return eventbus.Result{}, err
	}
	return result, nil
}

// Handle answers an API Gateway request. Every outcome carries the CORS
// headers; failures are 500 with the error's properties as the body.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return h.fail(errs.Wrap(errs.KindParse, err, "request body is not valid base64")), nil
		}
		body = string(decoded)
	}

	result, err := h.Produce(ctx, body)
	if err != nil {
		return h.fail(err), nil
	}

	h.log.Info("Produced event", "failedEntryCount", result.FailedEntryCount, "entries", len(result.Entries))
	return response.OK(result), nil
}

func (h *Handler) fail(err error) events.APIGatewayProxyResponse {
	h.log.Error("Failed to produce event", "error", err, "kind", errs.KindOf(err))
	return response.Failure(err)
}

func parse(body string) (Request, error) {
	var req Request
	if strings.TrimSpace(body) == "" {
		return req, errs.Parse("Request body is empty")
	}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return req, errs.Wrap(errs.KindParse, err, "Request body is not valid JSON")
	}
	if req.Status == "" {
		return req, errs.Parse("Request body is missing status")
	}
	return req, nil
}
