package status

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"

	"stackline/src/awsclient"
	"stackline/src/contracts"
	"stackline/src/errs"
)

// CodePipelineAPI is the subset of the CodePipeline client used here.
type CodePipelineAPI interface {
	GetPipelineExecution(ctx context.Context, params *codepipeline.GetPipelineExecutionInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineExecutionOutput, error)
}

// CodePipelineSource reads executions from AWS CodePipeline.
type CodePipelineSource struct {
	client CodePipelineAPI
}

// NewCodePipelineSource wraps a CodePipeline client.
func NewCodePipelineSource(client CodePipelineAPI) *CodePipelineSource {
	return &CodePipelineSource{client: client}
}

// NewCodePipelineSourceFromConfig builds a source from an AWS configuration.
func NewCodePipelineSourceFromConfig(cfg aws.Config) *CodePipelineSource {
	return NewCodePipelineSource(codepipeline.NewFromConfig(cfg))
}

func (s *CodePipelineSource) GetExecution(ctx context.Context, pipeline, executionID string) (*contracts.ExecutionRecord, error) {
	out, err := s.client.GetPipelineExecution(ctx, &codepipeline.GetPipelineExecutionInput{
		PipelineName:        aws.String(pipeline),
		PipelineExecutionId: aws.String(executionID),
	})
	if err != nil {
		return nil, awsclient.Upstream("GetPipelineExecution", err)
	}
	if out.PipelineExecution == nil {
		return nil, errs.Upstream("GetPipelineExecution", errs.Parse("Failed to fetch execution %s", executionID))
	}

	exec := out.PipelineExecution
	rec := &contracts.ExecutionRecord{
		PipelineName: aws.ToString(exec.PipelineName),
		ExecutionID:  aws.ToString(exec.PipelineExecutionId),
		Status:       string(exec.Status),
	}
	for _, rev := range exec.ArtifactRevisions {
		rec.Revisions = append(rec.Revisions, contracts.SourceRevision{
			ActionName:  aws.ToString(rev.Name),
			RevisionID:  aws.ToString(rev.RevisionId),
			RevisionURL: aws.ToString(rev.RevisionUrl),
			Summary:     aws.ToString(rev.RevisionSummary),
		})
	}
	return rec, nil
}
