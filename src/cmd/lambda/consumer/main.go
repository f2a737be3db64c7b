// Command consumer is the Lambda function the event rule invokes for every
// event from the producer. It logs the event and echoes it back.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"stackline/src/consumer"
	"stackline/src/logger"
)

func main() {
	c := consumer.NewEventConsumer(logger.NewJSONLogger(os.Stdout, "eventbridge-consumer"))
	lambda.Start(func(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error) {
		if err := c.Handle(ctx, event); err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return consumer.Success(ctx, event), nil
	})
}
