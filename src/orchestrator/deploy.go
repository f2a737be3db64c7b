package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"stackline/src/pipeline"
	"stackline/src/storage"
)

// DeployRunner runs deploy actions. Bucket deployments upload the input
// artifact to the object store; stack deployments go to Stacks.
type DeployRunner struct {
	Objects storage.ObjectStore
	// Stacks runs stack deployments. Nil records them without deploying.
	Stacks Runner
}

func (r *DeployRunner) Run(ctx context.Context, job Job) (Result, error) {
	switch a := job.Action.(type) {
	case *pipeline.BucketDeployAction:
		return r.deployBucket(ctx, job, a)
	case *pipeline.StackDeployAction:
		if r.Stacks != nil {
			return r.Stacks.Run(ctx, job)
		}
		return DryRunner{}.Run(ctx, job)
	default:
		return Result{}, fmt.Errorf("deploy runner cannot run %s action %s", job.Action.Category(), job.Action.Name())
	}
}

func (r *DeployRunner) deployBucket(ctx context.Context, job Job, a *pipeline.BucketDeployAction) (Result, error) {
	props := a.Props()
	dir := job.InputDir()

	if !props.Extract {
		body, err := zipTree(dir)
		if err != nil {
			return Result{}, err
		}
		err = r.Objects.PutObject(ctx, storage.PutInput{
			Bucket:      props.Bucket,
			Key:         props.ObjectKey,
			Body:        body,
			ContentType: "application/zip",
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("uploaded %s to s3://%s/%s", props.Input.Name(), props.Bucket, props.ObjectKey)}, nil
	}

	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		count++
		return r.Objects.PutObject(ctx, storage.PutInput{
			Bucket:      props.Bucket,
			Key:         filepath.ToSlash(rel),
			Body:        body,
			ContentType: mime.TypeByExtension(filepath.Ext(p)),
		})
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("extracted %d files to s3://%s", count, props.Bucket)}, nil
}

func zipTree(dir string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
