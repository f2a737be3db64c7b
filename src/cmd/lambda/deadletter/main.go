// Command deadletter drains the dead-letter queue, logging every message.
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"stackline/src/consumer"
	"stackline/src/logger"
)

func main() {
	c := consumer.NewDeadLetterConsumer(logger.NewJSONLogger(os.Stdout, "sqs-dlq-consumer"))
	lambda.Start(c.HandleSQS)
}
