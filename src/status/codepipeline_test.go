package status

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackline/src/errs"
)

type fakeCodePipeline struct {
	input *codepipeline.GetPipelineExecutionInput
	out   *codepipeline.GetPipelineExecutionOutput
	err   error
}

func (f *fakeCodePipeline) GetPipelineExecution(ctx context.Context, params *codepipeline.GetPipelineExecutionInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineExecutionOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestCodePipelineSource_GetExecution(t *testing.T) {
	api := &fakeCodePipeline{out: &codepipeline.GetPipelineExecutionOutput{
		PipelineExecution: &types.PipelineExecution{
			PipelineName:        aws.String("production-pipeline"),
			PipelineExecutionId: aws.String("e-1"),
			Status:              types.PipelineExecutionStatusInProgress,
			ArtifactRevisions: []types.ArtifactRevision{{
				Name:        aws.String("Artifact_Source_GitHub_Source"),
				RevisionId:  aws.String("0123abc"),
				RevisionUrl: aws.String("https://github.com/acme/infra/commit/0123abc"),
			}},
		},
	}}

	rec, err := NewCodePipelineSource(api).GetExecution(context.Background(), "production-pipeline", "e-1")
	require.NoError(t, err)

	assert.Equal(t, "production-pipeline", aws.ToString(api.input.PipelineName))
	assert.Equal(t, "e-1", aws.ToString(api.input.PipelineExecutionId))
	assert.Equal(t, "InProgress", rec.Status)
	require.Len(t, rec.Revisions, 1)
	assert.Equal(t, "0123abc", rec.Revisions[0].RevisionID)
	assert.Equal(t, "https://github.com/acme/infra/commit/0123abc", rec.Revisions[0].RevisionURL)
}

func TestCodePipelineSource_Errors(t *testing.T) {
	api := &fakeCodePipeline{err: &smithy.GenericAPIError{Code: "PipelineExecutionNotFoundException"}}
	_, err := NewCodePipelineSource(api).GetExecution(context.Background(), "p", "e")
	assert.True(t, errs.IsUpstream(err))
	assert.Contains(t, err.Error(), "PipelineExecutionNotFoundException")

	empty := &fakeCodePipeline{out: &codepipeline.GetPipelineExecutionOutput{}}
	_, err = NewCodePipelineSource(empty).GetExecution(context.Background(), "p", "e")
	assert.True(t, errs.IsUpstream(err))
}
