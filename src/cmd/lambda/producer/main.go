// Command producer is the Lambda function behind POST /eventbridge-producer.
// It puts one "AWS Lambda event" on the event bus per request.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"stackline/src/awsclient"
	"stackline/src/config"
	"stackline/src/eventbus"
	"stackline/src/logger"
	"stackline/src/producer"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	awsCfg, err := awsclient.Load(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		log.Fatalf("AWS configuration error: %v", err)
	}

	bus := eventbus.NewEventBridgeBusFromConfig(awsCfg, cfg.EventBus)
	h := producer.New(bus, logger.NewJSONLogger(os.Stdout, "eventbridge-producer"))
	lambda.Start(h.Handle)
}
