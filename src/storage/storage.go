// Package storage writes objects to S3 or to an in-memory bucket.
package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"stackline/src/awsclient"
	"stackline/src/errs"
)

// PutInput describes an object write.
type PutInput struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
	// ACL is a canned ACL such as "public-read". Empty leaves the bucket default.
	ACL string
}

// ObjectStore writes objects.
type ObjectStore interface {
	PutObject(ctx context.Context, in PutInput) error
}

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes objects to S3.
type S3Store struct {
	client S3API
}

// NewS3Store wraps an S3 client.
func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

// NewS3StoreFromConfig builds a store from an AWS configuration. Path-style
// addressing is used when a custom endpoint is configured.
func NewS3StoreFromConfig(cfg aws.Config) *S3Store {
	return NewS3Store(s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BaseEndpoint != nil
	}))
}

func (s *S3Store) PutObject(ctx context.Context, in PutInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	params := &s3.PutObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
		Body:   bytes.NewReader(in.Body),
	}
	if in.ContentType != "" {
		params.ContentType = aws.String(in.ContentType)
	}
	if in.ACL != "" {
		params.ACL = types.ObjectCannedACL(in.ACL)
	}

	if _, err := s.client.PutObject(ctx, params); err != nil {
		return awsclient.Upstream("PutObject", err)
	}
	return nil
}

func (in PutInput) validate() error {
	if in.Bucket == "" {
		return errs.Configuration("object bucket is required")
	}
	if in.Key == "" {
		return errs.Configuration("object key is required")
	}
	return nil
}

// Object is a stored object.
type Object struct {
	Body        []byte
	ContentType string
	ACL         string
}

// MemoryStore keeps objects in memory keyed by bucket and key.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (m *MemoryStore) PutObject(ctx context.Context, in PutInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[in.Bucket+"/"+in.Key] = Object{
		Body:        append([]byte(nil), in.Body...),
		ContentType: in.ContentType,
		ACL:         in.ACL,
	}
	return nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+key]
	return obj, ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
