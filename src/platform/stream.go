package platform

import (
	"context"
	"fmt"

	"stackline/src/contracts"
)

// StateChange is one decoded pipeline, stage or action state change.
type StateChange struct {
	DetailType string
	contracts.PipelineStateDetail
}

// Level reports whether the change is for the pipeline, a stage or an action.
func (c StateChange) Level() string {
	switch c.DetailType {
	case contracts.DetailTypePipelineExecution:
		return "pipeline"
	case contracts.DetailTypeStageExecution:
		return "stage"
	default:
		return "action"
	}
}

// Stream returns the state changes published for executionID, or for every
// execution when executionID is empty. group is usually a broker.TailGroup
// or broker.ReplayGroup reader. The channel closes when ctx is done.
func (p *Platform) Stream(ctx context.Context, group, executionID string) (<-chan StateChange, error) {
	msgChan, err := p.Broker.Subscribe(ctx, contracts.TopicPipelineState, group)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to state changes: %w", err)
	}

	changes := make(chan StateChange, 100)
	go func() {
		defer close(changes)
		for {
			select {
			case msg, ok := <-msgChan:
				if !ok {
					return
				}
				evt, err := contracts.DecodeBusEvent(msg.Value)
				if err != nil || evt.Source != contracts.SourceCodePipeline {
					continue
				}
				detail, err := evt.PipelineState()
				if err != nil {
					continue
				}
				if executionID != "" && detail.ExecutionID != executionID {
					continue
				}
				select {
				case changes <- StateChange{DetailType: evt.DetailType, PipelineStateDetail: detail}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return changes, nil
}
