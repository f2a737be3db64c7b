// Package contracts defines the messages exchanged between stackline's handlers, agents and tools.
package contracts

// Topic names used on the broker.
const (
	// TopicEvents carries bus events emitted by the producer (BusEvent).
	TopicEvents = "stackline.events"
	// TopicPipelineState carries pipeline, stage and action state changes (BusEvent).
	TopicPipelineState = "stackline.pipeline.state"
	// TopicNotifications carries alert messages for the notification forwarder (Notification).
	TopicNotifications = "stackline.notifications"
	// TopicDeadLetter carries records that exhausted their retries (DeadLetter).
	TopicDeadLetter = "stackline.deadletter"
)

// Fixed event tags.
const (
	DetailTypeLambdaEvent = "AWS Lambda event"
	SourceProducer        = "com.ian"

	DetailTypePipelineExecution = "CodePipeline Pipeline Execution State Change"
	DetailTypeStageExecution    = "CodePipeline Stage Execution State Change"
	DetailTypeActionExecution   = "CodePipeline Action Execution State Change"
	SourceCodePipeline          = "aws.codepipeline"
)
