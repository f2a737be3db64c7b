package platform

import (
	"context"

	"stackline/src/awsclient"
	"stackline/src/config"
	"stackline/src/secrets"
	"stackline/src/status"
	"stackline/src/storage"
)

// Services are the external systems the handlers talk to. Without AWS
// configuration they fall back to in-memory implementations.
type Services struct {
	Objects  storage.ObjectStore
	Secrets  secrets.Provider
	Reporter status.Reporter

	// ArchiveBucket receives archived events.
	ArchiveBucket string
}

// NewServices builds S3 storage when BUCKET_NAME is set and Secrets Manager
// access when a secret id is set.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	svc := &Services{
		Objects:       storage.NewMemoryStore(),
		Secrets:       secrets.NewMemoryProvider(nil),
		ArchiveBucket: cfg.BucketName,
	}
	if svc.ArchiveBucket == "" {
		svc.ArchiveBucket = cfg.Lowered("event-archive")
	}

	useSecrets := cfg.GitHubSecretID != "" || cfg.SlackSecretID != ""
	if cfg.BucketName != "" || useSecrets {
		awsCfg, err := awsclient.Load(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			return nil, err
		}
		if cfg.BucketName != "" {
			svc.Objects = storage.NewS3StoreFromConfig(awsCfg)
		}
		if useSecrets {
			svc.Secrets = secrets.NewCached(secrets.NewAWSProviderFromConfig(awsCfg))
		}
	}

	svc.Reporter = status.NewTokenReporter(svc.Secrets, cfg.GitHubSecretID)
	return svc, nil
}
