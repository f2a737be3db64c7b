// Command stream consumes Kinesis batches. A record with forceRetry fails
// the whole batch so the stream redelivers it.
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"stackline/src/consumer"
	"stackline/src/logger"
)

func main() {
	c := consumer.NewStreamConsumer(logger.NewJSONLogger(os.Stdout, "kinesis-consumer"))
	lambda.Start(c.HandleKinesis)
}
