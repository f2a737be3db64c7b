package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackline/src/broker"
	"stackline/src/contracts"
	"stackline/src/errs"
)

type fakeEventBridge struct {
	input *eventbridge.PutEventsInput
	out   *eventbridge.PutEventsOutput
	err   error
}

func (f *fakeEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestEventBridgeBus_PutEvents(t *testing.T) {
	api := &fakeEventBridge{out: &eventbridge.PutEventsOutput{
		Entries: []types.PutEventsResultEntry{{EventId: aws.String("evt-1")}},
	}}
	bus := NewEventBridgeBus(api, "orders")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	res, err := bus.PutEvents(context.Background(), Entry{
		Source:     contracts.SourceProducer,
		DetailType: contracts.DetailTypeLambdaEvent,
		Detail:     json.RawMessage(`{"status":"ok"}`),
		Time:       at,
	})
	require.NoError(t, err)

	require.Len(t, api.input.Entries, 1)
	sent := api.input.Entries[0]
	assert.Equal(t, "com.ian", aws.ToString(sent.Source))
	assert.Equal(t, "AWS Lambda event", aws.ToString(sent.DetailType))
	assert.Equal(t, "orders", aws.ToString(sent.EventBusName))
	assert.JSONEq(t, `{"status":"ok"}`, aws.ToString(sent.Detail))
	assert.Equal(t, at, aws.ToTime(sent.Time))

	assert.Equal(t, 0, res.FailedEntryCount)
	assert.Equal(t, []ResultEntry{{EventID: "evt-1"}}, res.Entries)
}

func TestEventBridgeBus_DefaultBus(t *testing.T) {
	api := &fakeEventBridge{out: &eventbridge.PutEventsOutput{}}
	_, err := NewEventBridgeBus(api, "").PutEvents(context.Background(), Entry{Detail: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Nil(t, api.input.Entries[0].EventBusName)
}

func TestEventBridgeBus_FailedEntries(t *testing.T) {
	api := &fakeEventBridge{out: &eventbridge.PutEventsOutput{
		Entries: []types.PutEventsResultEntry{{ErrorCode: aws.String("ThrottlingException"), ErrorMessage: aws.String("rate")}},
	}}

	res, err := NewEventBridgeBus(api, "").PutEvents(context.Background(), Entry{Detail: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedEntryCount)
	assert.Equal(t, "ThrottlingException", res.Entries[0].ErrorCode)
}

func TestEventBridgeBus_Error(t *testing.T) {
	api := &fakeEventBridge{err: &smithy.GenericAPIError{Code: "AccessDeniedException"}}

	_, err := NewEventBridgeBus(api, "").PutEvents(context.Background(), Entry{Detail: json.RawMessage(`{}`)})
	assert.True(t, errs.IsUpstream(err))
}

func TestBrokerBus_PutEvents(t *testing.T) {
	b := broker.NewInMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Subscribe(ctx, contracts.TopicEvents, "test")
	require.NoError(t, err)

	bus := NewBrokerBus(b, "eu-west-2")
	res, err := bus.PutEvents(ctx, Entry{
		Source:     contracts.SourceProducer,
		DetailType: contracts.DetailTypeLambdaEvent,
		Detail:     json.RawMessage(`{"status":"ok","correlationId":"c-1"}`),
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.NotEmpty(t, res.Entries[0].EventID)

	select {
	case msg := <-ch:
		evt, err := contracts.DecodeBusEvent(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, res.Entries[0].EventID, evt.ID)
		assert.Equal(t, msg.Key, evt.ID)
		assert.Equal(t, "eu-west-2", evt.Region)
		detail, err := evt.Stored()
		require.NoError(t, err)
		assert.Equal(t, "c-1", detail.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerBus_InvalidDetail(t *testing.T) {
	b := broker.NewInMemoryBroker()
	defer b.Close()

	_, err := NewBrokerBus(b, "").PutEvents(context.Background(), Entry{Detail: json.RawMessage(`{`)})
	assert.True(t, errs.IsParse(err))
}
