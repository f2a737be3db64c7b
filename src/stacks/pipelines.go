package stacks

import (
	"stackline/src/config"
	"stackline/src/logger"
	"stackline/src/pipeline"
)

const (
	sourceOwner  = "lukehedger"
	sourceRepo   = "infra-as-node"
	githubSecret = "dev/Tread/GitHubToken"
)

var installCommands = []string{"npm install --global yarn", "yarn install"}

// Pipeline builds the deployment pipeline for cfg: the production pipeline,
// or an integration pipeline when a pull request number is set.
func Pipeline(cfg *config.Config, infra *Infrastructure, log logger.Logger) (*pipeline.Definition, error) {
	name := "production-pipeline"
	if cfg.IsIntegration() {
		name = cfg.Lowered("integration-pipeline")
	}
	stages, err := Stages(cfg, infra)
	if err != nil {
		return nil, err
	}
	return pipeline.Build(name, stages,
		pipeline.WithArtifactStore(cfg.Lowered("pipeline-artifacts")),
		pipeline.WithLogger(log))
}

// Stages returns Source, Build, Deploy and Test for the infrastructure stack
// and the static app.
func Stages(cfg *config.Config, infra *Infrastructure) ([]pipeline.StageSpec, error) {
	source := pipeline.NewArtifact("")
	infraOutput := pipeline.NewArtifact("InfrastructureBuildOutput")
	staticOutput := pipeline.NewArtifact("SABO")

	outputs := map[string]*pipeline.Artifact{}
	buildArtifacts := []pipeline.ArtifactFiles{{
		Artifact:      infraOutput,
		BaseDirectory: "./infrastructure",
		Files:         []string{infra.TemplateFile()},
	}}
	for _, f := range infra.Functions {
		art := pipeline.NewArtifact(f.Artifact)
		outputs[f.Artifact] = art
		buildArtifacts = append(buildArtifacts, pipeline.ArtifactFiles{
			Artifact:      art,
			BaseDirectory: "./" + f.Directory + "/lib",
			Files:         []string{f.File + ".js"},
		})
	}

	overrides, err := pipeline.Bind(infra.Bindings(outputs)...)
	if err != nil {
		return nil, err
	}

	extra := make([]*pipeline.Artifact, 0, len(infra.Functions))
	for _, f := range infra.Functions {
		extra = append(extra, outputs[f.Artifact])
	}

	stages := []pipeline.StageSpec{
		{Name: "Source", Actions: []pipeline.Action{
			pipeline.NewSource("GitHub_Source", pipeline.SourceProps{
				Owner:         sourceOwner,
				Repo:          sourceRepo,
				Branch:        cfg.Branch(),
				OAuthSecret:   githubSecret,
				WebhookSecret: githubSecret,
				Trigger:       pipeline.TriggerWebhook,
				Output:        source,
			}),
		}},
		{Name: "Build", Actions: []pipeline.Action{
			pipeline.NewBuild("Microservice_Build", pipeline.BuildProps{
				Project: cfg.Suffixed("MicroserviceBuild"),
				Input:   source,
				Spec: pipeline.BuildSpec{
					Install:   installCommands,
					Build:     []string{"yarn build-infra"},
					Artifacts: buildArtifacts,
				},
				Environment: map[string]string{"GITHUB_PR_NUMBER": cfg.PRNumber},
			}),
			pipeline.NewBuild("StaticApp_Build", pipeline.BuildProps{
				Project: cfg.Suffixed("StaticAppBuild"),
				Input:   source,
				Spec: pipeline.BuildSpec{
					Install:   installCommands,
					Build:     []string{"yarn build-static"},
					Artifacts: []pipeline.ArtifactFiles{{Artifact: staticOutput, BaseDirectory: "./static-app/build"}},
				},
			}),
		}},
		{Name: "Deploy", Actions: []pipeline.Action{
			pipeline.NewStackDeploy("Infrastructure_Deploy", pipeline.StackDeployProps{
				StackName:    infra.StackName,
				Template:     infraOutput.AtPath(infra.TemplateFile()),
				Parameters:   overrides,
				ExtraInputs:  extra,
				Capabilities: []string{"CAPABILITY_NAMED_IAM"},
				RunOrder:     1,
				Hooks:        []pipeline.DeployHook{pipeline.GrantArtifactRead("")},
			}),
			pipeline.NewBucketDeploy("Static_App_Deploy", pipeline.BucketDeployProps{
				Bucket:   cfg.Lowered("static-app"),
				Input:    staticOutput,
				Extract:  true,
				RunOrder: 2,
			}),
		}},
		{Name: "Test", Actions: []pipeline.Action{
			pipeline.NewTest("Workspace_Integration_Test", pipeline.BuildProps{
				Project: cfg.Suffixed("WorkspaceIntegrationTest"),
				Input:   source,
				Spec: pipeline.BuildSpec{
					Install: installCommands,
					Build:   []string{"yarn test"},
					Reports: []pipeline.ReportFiles{{
						Group:         "integration-tests",
						BaseDirectory: "reports",
						Files:         []string{"*.xml"},
					}},
				},
			}),
		}},
	}
	return stages, nil
}
