package pipeline

import "stackline/src/errs"

// HookContext is passed to deploy hooks after the graph is validated.
type HookContext struct {
	Pipeline      string
	Stage         string
	Action        *StackDeployAction
	ArtifactStore string
}

// Grant is a permission recorded by a deploy hook.
type Grant struct {
	Principal string   `json:"principal"`
	Actions   []string `json:"actions"`
	Resources []string `json:"resources"`
}

// DeployHook runs once per stack deployment action after validation and may
// contribute permission grants to the rendered pipeline.
type DeployHook func(HookContext) ([]Grant, error)

// GrantArtifactRead lets the stack deployment role read the pipeline's
// artifact store. The role defaults to "<StackName>-DeploymentRole".
func GrantArtifactRead(role string) DeployHook {
	return func(hc HookContext) ([]Grant, error) {
		if hc.ArtifactStore == "" {
			return nil, errs.Configuration("action %s/%s grants artifact read but the pipeline has no artifact store", hc.Stage, hc.Action.Name())
		}
		principal := role
		if principal == "" {
			principal = hc.Action.StackName() + "-DeploymentRole"
		}
		bucketARN := "arn:aws:s3:::" + hc.ArtifactStore
		return []Grant{{
			Principal: principal,
			Actions:   []string{"s3:GetObject*", "s3:GetBucket*", "s3:List*"},
			Resources: []string{bucketARN, bucketARN + "/*"},
		}}, nil
	}
}
