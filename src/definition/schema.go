package definition

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block of a definition file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
}

type pipelineBlock struct {
	Name          string        `hcl:"name,label"`
	ArtifactStore string        `hcl:"artifact_store,optional"`
	Stages        []*stageBlock `hcl:"stage,block"`
}

// stageBlock leaves its action blocks undecoded so they can be read in
// declaration order against actionSchema.
type stageBlock struct {
	Name    string   `hcl:"name,label"`
	Actions hcl.Body `hcl:",remain"`
}

const (
	blockSource       = "source"
	blockBuild        = "build"
	blockTest         = "test"
	blockDeployStack  = "deploy_stack"
	blockDeployBucket = "deploy_bucket"
)

var actionSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: blockSource, LabelNames: []string{"name"}},
		{Type: blockBuild, LabelNames: []string{"name"}},
		{Type: blockTest, LabelNames: []string{"name"}},
		{Type: blockDeployStack, LabelNames: []string{"name"}},
		{Type: blockDeployBucket, LabelNames: []string{"name"}},
	},
}

type sourceBlock struct {
	Owner         string `hcl:"owner"`
	Repo          string `hcl:"repo"`
	Branch        string `hcl:"branch,optional"`
	OAuthSecret   string `hcl:"oauth_secret,optional"`
	WebhookSecret string `hcl:"webhook_secret,optional"`
	Trigger       string `hcl:"trigger,optional"`
	Output        string `hcl:"output,optional"`
}

type buildBlock struct {
	Project     string            `hcl:"project,optional"`
	Input       string            `hcl:"input"`
	ExtraInputs []string          `hcl:"extra_inputs,optional"`
	RunOrder    int               `hcl:"run_order,optional"`
	Install     []string          `hcl:"install,optional"`
	PreBuild    []string          `hcl:"pre_build,optional"`
	Commands    []string          `hcl:"commands,optional"`
	PostBuild   []string          `hcl:"post_build,optional"`
	Env         map[string]string `hcl:"env,optional"`
	Artifacts   []*artifactBlock  `hcl:"artifact,block"`
	Reports     []*reportBlock    `hcl:"report,block"`
}

type reportBlock struct {
	Group         string   `hcl:"group,label"`
	BaseDirectory string   `hcl:"base_directory,optional"`
	Files         []string `hcl:"files,optional"`
}

type artifactBlock struct {
	Name          string   `hcl:"name,label"`
	BaseDirectory string   `hcl:"base_directory,optional"`
	Files         []string `hcl:"files,optional"`
}

type stackDeployBlock struct {
	StackName         string            `hcl:"stack_name"`
	Template          string            `hcl:"template"`
	ExtraInputs       []string          `hcl:"extra_inputs,optional"`
	Capabilities      []string          `hcl:"capabilities,optional"`
	ActionMode        string            `hcl:"action_mode,optional"`
	RunOrder          int               `hcl:"run_order,optional"`
	Parameters        map[string]string `hcl:"parameters,optional"`
	GrantArtifactRead bool              `hcl:"grant_artifact_read,optional"`
	DeploymentRole    string            `hcl:"deployment_role,optional"`
	Bindings          []*bindingBlock   `hcl:"binding,block"`
}

// bindingBlock binds a function's code parameters to an artifact. Either
// code (a logical id) or both explicit parameter names must be set.
type bindingBlock struct {
	Artifact    string `hcl:"artifact,label"`
	Code        string `hcl:"code,optional"`
	BucketParam string `hcl:"bucket_param,optional"`
	KeyParam    string `hcl:"key_param,optional"`
}

type bucketDeployBlock struct {
	Bucket    string `hcl:"bucket"`
	Input     string `hcl:"input"`
	Extract   bool   `hcl:"extract,optional"`
	ObjectKey string `hcl:"object_key,optional"`
	RunOrder  int    `hcl:"run_order,optional"`
}
