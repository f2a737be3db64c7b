package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the kind of work an action performs.
type Category string

const (
	CategorySource Category = "Source"
	CategoryBuild  Category = "Build"
	CategoryDeploy Category = "Deploy"
	CategoryTest   Category = "Test"
)

// Action is one unit of work within a stage.
type Action interface {
	Name() string
	Category() Category
	// Owner and Provider identify the service that executes the action.
	Owner() string
	Provider() string
	RunOrder() int
	Inputs() []*Artifact
	Outputs() []*Artifact
	// Configuration is the provider-specific configuration map.
	Configuration() map[string]any
}

func runOrderOrDefault(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// Trigger selects how a source action learns about new revisions.
type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerPoll    Trigger = "poll"
	TriggerNone    Trigger = "none"
)

// SourceProps configures a GitHub source action.
type SourceProps struct {
	Owner  string
	Repo   string
	Branch string
	// OAuthSecret is the secret id holding the repository token.
	OAuthSecret string
	// WebhookSecret is the shared secret used to authenticate webhook deliveries.
	WebhookSecret string
	Trigger       Trigger
	Output        *Artifact
}

// SourceAction fetches a source snapshot and emits it as the root artifact.
type SourceAction struct {
	name  string
	props SourceProps
}

// NewSource creates a source action.
func NewSource(name string, props SourceProps) *SourceAction {
	if props.Trigger == "" {
		props.Trigger = TriggerWebhook
	}
	if props.Branch == "" {
		props.Branch = "master"
	}
	if props.Output == nil {
		props.Output = NewArtifact("")
	}
	return &SourceAction{name: name, props: props}
}

func (a *SourceAction) Name() string          { return a.name }
func (a *SourceAction) Category() Category    { return CategorySource }
func (a *SourceAction) Owner() string         { return "ThirdParty" }
func (a *SourceAction) Provider() string      { return "GitHub" }
func (a *SourceAction) RunOrder() int         { return 1 }
func (a *SourceAction) Inputs() []*Artifact   { return nil }
func (a *SourceAction) Outputs() []*Artifact  { return []*Artifact{a.props.Output} }
func (a *SourceAction) Props() SourceProps    { return a.props }
func (a *SourceAction) Output() *Artifact     { return a.props.Output }
func (a *SourceAction) Trigger() Trigger      { return a.props.Trigger }
func (a *SourceAction) RepositoryURL() string { return "https://github.com/" + a.props.Owner + "/" + a.props.Repo }

func (a *SourceAction) Configuration() map[string]any {
	cfg := map[string]any{
		"Owner":                a.props.Owner,
		"Repo":                 a.props.Repo,
		"Branch":               a.props.Branch,
		"PollForSourceChanges": fmt.Sprintf("%t", a.props.Trigger == TriggerPoll),
	}
	if a.props.OAuthSecret != "" {
		cfg["OAuthToken"] = SecretReference(a.props.OAuthSecret)
	}
	return cfg
}

// SecretReference renders a dynamic reference to a secret's string value.
func SecretReference(secretID string) string {
	return "{{resolve:secretsmanager:" + secretID + ":SecretString:::}}"
}

// BuildProps configures a build or test action.
type BuildProps struct {
	// Project is the build project name; defaults to the action name.
	Project     string
	Input       *Artifact
	ExtraInputs []*Artifact
	Spec        BuildSpec
	Environment map[string]string
	RunOrder    int
}

// BuildAction runs a build specification over its input artifacts. Its
// outputs are the artifacts declared by the specification.
type BuildAction struct {
	name     string
	category Category
	props    BuildProps
}

// NewBuild creates a build action.
func NewBuild(name string, props BuildProps) *BuildAction {
	return &BuildAction{name: name, category: CategoryBuild, props: props}
}

// NewTest creates a test action. Test actions run like builds but usually produce nothing.
func NewTest(name string, props BuildProps) *BuildAction {
	return &BuildAction{name: name, category: CategoryTest, props: props}
}

func (a *BuildAction) Name() string       { return a.name }
func (a *BuildAction) Category() Category { return a.category }
func (a *BuildAction) Owner() string      { return "AWS" }
func (a *BuildAction) Provider() string   { return "CodeBuild" }
func (a *BuildAction) RunOrder() int      { return runOrderOrDefault(a.props.RunOrder) }
func (a *BuildAction) Spec() BuildSpec    { return a.props.Spec.clone() }
func (a *BuildAction) Props() BuildProps  { return a.props.clone() }

func (a *BuildAction) Project() string {
	if a.props.Project != "" {
		return a.props.Project
	}
	return a.name
}

func (a *BuildAction) Inputs() []*Artifact {
	return appendUnique(nil, append([]*Artifact{a.props.Input}, a.props.ExtraInputs...)...)
}

func (a *BuildAction) Outputs() []*Artifact {
	outputs := make([]*Artifact, 0, len(a.props.Spec.Artifacts))
	for _, files := range a.props.Spec.Artifacts {
		outputs = append(outputs, files.Artifact)
	}
	return outputs
}

func (a *BuildAction) Configuration() map[string]any {
	cfg := map[string]any{"ProjectName": a.Project()}
	if inputs := a.Inputs(); len(inputs) > 1 {
		cfg["PrimarySource"] = inputs[0].Name()
	}
	if len(a.props.Environment) > 0 {
		type envVar struct {
			Name  string `json:"name"`
			Value string `json:"value"`
			Type  string `json:"type"`
		}
		vars := make([]envVar, 0, len(a.props.Environment))
		for _, k := range sortedKeys(a.props.Environment) {
			vars = append(vars, envVar{Name: k, Value: a.props.Environment[k], Type: "PLAINTEXT"})
		}
		data, _ := json.Marshal(vars)
		cfg["EnvironmentVariables"] = string(data)
	}
	return cfg
}

// ActionMode is the stack deployment mode.
type ActionMode string

const (
	ModeCreateUpdate ActionMode = "CREATE_UPDATE"
	ModeReplace      ActionMode = "REPLACE_ON_FAILURE"
	ModeDelete       ActionMode = "DELETE_ONLY"
)

// StackDeployProps configures an infrastructure stack deployment.
type StackDeployProps struct {
	StackName string
	Template  ArtifactPath
	// Parameters are the deferred parameter overrides, usually produced by Bind.
	Parameters   ParameterOverrides
	ExtraInputs  []*Artifact
	Capabilities []string
	ActionMode   ActionMode
	RunOrder     int
	// Hooks run once the graph is validated, in declaration order.
	Hooks []DeployHook
}

// StackDeployAction deploys a synthesized infrastructure template.
type StackDeployAction struct {
	name  string
	props StackDeployProps
}

// NewStackDeploy creates a stack deployment action.
func NewStackDeploy(name string, props StackDeployProps) *StackDeployAction {
	if props.ActionMode == "" {
		props.ActionMode = ModeCreateUpdate
	}
	return &StackDeployAction{name: name, props: props}
}

func (a *StackDeployAction) Name() string                   { return a.name }
func (a *StackDeployAction) Category() Category             { return CategoryDeploy }
func (a *StackDeployAction) Owner() string                  { return "AWS" }
func (a *StackDeployAction) Provider() string               { return "CloudFormation" }
func (a *StackDeployAction) RunOrder() int                  { return runOrderOrDefault(a.props.RunOrder) }
func (a *StackDeployAction) Outputs() []*Artifact           { return nil }
func (a *StackDeployAction) StackName() string              { return a.props.StackName }
func (a *StackDeployAction) Template() ArtifactPath         { return a.props.Template }
func (a *StackDeployAction) Parameters() ParameterOverrides { return a.props.Parameters.clone() }
func (a *StackDeployAction) Hooks() []DeployHook            { return append([]DeployHook(nil), a.props.Hooks...) }

// Inputs are the template artifact, the extra inputs, and every artifact the
// parameter overrides refer to, in that order and without repeats.
func (a *StackDeployAction) Inputs() []*Artifact {
	inputs := appendUnique(nil, a.props.Template.Artifact)
	inputs = appendUnique(inputs, a.props.ExtraInputs...)
	return appendUnique(inputs, a.props.Parameters.Artifacts()...)
}

func (a *StackDeployAction) Configuration() map[string]any {
	cfg := map[string]any{
		"ActionMode":   string(a.props.ActionMode),
		"StackName":    a.props.StackName,
		"TemplatePath": a.props.Template.String(),
	}
	if len(a.props.Capabilities) > 0 {
		cfg["Capabilities"] = strings.Join(a.props.Capabilities, ",")
	}
	if len(a.props.Parameters) > 0 {
		data, _ := json.Marshal(a.props.Parameters)
		cfg["ParameterOverrides"] = string(data)
	}
	return cfg
}

// BucketDeployProps configures a static asset deployment to a bucket.
type BucketDeployProps struct {
	Bucket string
	Input  *Artifact
	// Extract unpacks the artifact into the bucket instead of uploading it as one object.
	Extract bool
	// ObjectKey is required when Extract is false.
	ObjectKey string
	RunOrder  int
}

// BucketDeployAction copies an artifact into a storage bucket.
type BucketDeployAction struct {
	name  string
	props BucketDeployProps
}

// NewBucketDeploy creates a static asset deployment action.
func NewBucketDeploy(name string, props BucketDeployProps) *BucketDeployAction {
	return &BucketDeployAction{name: name, props: props}
}

func (a *BucketDeployAction) Name() string             { return a.name }
func (a *BucketDeployAction) Category() Category       { return CategoryDeploy }
func (a *BucketDeployAction) Owner() string            { return "AWS" }
func (a *BucketDeployAction) Provider() string         { return "S3" }
func (a *BucketDeployAction) RunOrder() int            { return runOrderOrDefault(a.props.RunOrder) }
func (a *BucketDeployAction) Inputs() []*Artifact      { return []*Artifact{a.props.Input} }
func (a *BucketDeployAction) Outputs() []*Artifact     { return nil }
func (a *BucketDeployAction) Props() BucketDeployProps { return a.props }

func (a *BucketDeployAction) Configuration() map[string]any {
	cfg := map[string]any{
		"BucketName": a.props.Bucket,
		"Extract":    fmt.Sprintf("%t", a.props.Extract),
	}
	if !a.props.Extract {
		cfg["ObjectKey"] = a.props.ObjectKey
	}
	return cfg
}

func appendUnique(list []*Artifact, artifacts ...*Artifact) []*Artifact {
	for _, a := range artifacts {
		if a == nil {
			continue
		}
		seen := false
		for _, existing := range list {
			if existing == a {
				seen = true
				break
			}
		}
		if !seen {
			list = append(list, a)
		}
	}
	return list
}
