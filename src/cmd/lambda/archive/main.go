// Command archive writes every produced event to the archive bucket, keyed
// by its correlation id.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"stackline/src/archive"
	"stackline/src/awsclient"
	"stackline/src/config"
	"stackline/src/logger"
	"stackline/src/storage"
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

	// A missing BUCKET_NAME is reported per event by the handler.
	h := archive.New(storage.NewS3StoreFromConfig(awsCfg), cfg.BucketName, cfg.ArchiveACL,
		logger.NewJSONLogger(os.Stdout, "eventbridge-s3"))
	lambda.Start(h.Handle)
}
