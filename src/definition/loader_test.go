package definition

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stackline/src/config"
	"stackline/src/errs"
	"stackline/src/logger"
	"stackline/src/pipeline"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func newLoader(t *testing.T, env map[string]string) *Loader {
	t.Helper()
	cfg, err := config.LoadFrom(mapLookup(env))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return NewLoader(cfg, logger.NewSilentLogger()).WithLookup(mapLookup(env))
}

func TestLoad_Production(t *testing.T) {
	defs, err := newLoader(t, map[string]string{"STACKLINE_TEST_LOG_LEVEL": "debug"}).Load("testdata/production.hcl")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("Expected 1 pipeline, got %d", len(defs))
	}
	def := defs[0]

	if def.Name() != "production-pipeline" {
		t.Errorf("Name() = %q", def.Name())
	}
	if def.ArtifactStore() != "stackline-artifacts" {
		t.Errorf("ArtifactStore() = %q", def.ArtifactStore())
	}

	var names []string
	for _, s := range def.Stages() {
		names = append(names, s.Name)
	}
	if len(names) != 4 || names[0] != "Source" || names[3] != "Test" {
		t.Errorf("stages = %v", names)
	}

	src := def.Source()
	if src.Output().Name() != "Artifact_Source_GitHub_Source" {
		t.Errorf("source output = %q", src.Output().Name())
	}
	if src.Props().Branch != "master" {
		t.Errorf("branch = %q, want master", src.Props().Branch)
	}

	deploy, _ := def.Stage("Deploy")
	stack := deploy.Actions[0].(*pipeline.StackDeployAction)
	if stack.StackName() != "InfrastructureStack-Production" {
		t.Errorf("StackName() = %q", stack.StackName())
	}

	params := stack.Parameters()
	for _, p := range []string{"EventBridgeConsumerLambdaS3Bucket", "EventBridgeConsumerLambdaS3Key", "EPLBS3Bucket", "EPLBS3Key"} {
		if _, ok := params[p]; !ok {
			t.Errorf("missing parameter %s", p)
		}
	}
	if got := params["Environment"].String(); got != "production" {
		t.Errorf("Environment = %q, want production", got)
	}
	if got := params["LogLevel"].String(); got != "debug" {
		t.Errorf("LogLevel = %q, want debug", got)
	}

	bucket := deploy.Actions[1].(*pipeline.BucketDeployAction)
	if bucket.Props().Bucket != "static-app-production" {
		t.Errorf("bucket = %q", bucket.Props().Bucket)
	}

	if len(def.Grants()) != 1 || def.Grants()[0].Principal != "InfrastructureStack-Production-DeploymentRole" {
		t.Errorf("grants = %+v", def.Grants())
	}

	test, _ := def.Stage("Test")
	reports := test.Actions[0].(*pipeline.BuildAction).Spec().Reports
	if len(reports) != 1 || reports[0].Group != "integration-tests" || reports[0].BaseDirectory != "reports" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestLoad_IntegrationVariables(t *testing.T) {
	env := map[string]string{"GITHUB_PR_NUMBER": "42", "GITHUB_HEAD_REF": "feature/x"}
	defs, err := newLoader(t, env).Load("testdata/production.hcl")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := defs[0]
	if def.Source().Props().Branch != "feature/x" {
		t.Errorf("branch = %q, want feature/x", def.Source().Props().Branch)
	}
	deploy, _ := def.Stage("Deploy")
	if got := deploy.Actions[0].(*pipeline.StackDeployAction).StackName(); got != "InfrastructureStack-Integration-42" {
		t.Errorf("StackName() = %q", got)
	}
	if got := deploy.Actions[1].(*pipeline.BucketDeployAction).Props().Bucket; got != "static-app-integration-42" {
		t.Errorf("bucket = %q", got)
	}
	params := deploy.Actions[0].(*pipeline.StackDeployAction).Parameters()
	if got := params["LogLevel"].String(); got != "info" {
		t.Errorf("LogLevel = %q, want default info", got)
	}
}

func TestLoad_DanglingArtifact(t *testing.T) {
	_, err := newLoader(t, nil).Load("testdata/dangling.hcl")
	if !errors.Is(err, pipeline.ErrDanglingArtifact) {
		t.Fatalf("Load() error = %v, want ErrDanglingArtifact", err)
	}
	if !errs.IsConfiguration(err) {
		t.Errorf("error kind = %q, want ConfigurationError", errs.KindOf(err))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errs.Kind
	}{
		{
			name: "syntax error",
			src:  `pipeline "p" {`,
			kind: errs.KindParse,
		},
		{
			name: "unknown action",
			src: `pipeline "p" {
  stage "Source" {
    lambda "x" {}
  }
}`,
			kind: errs.KindParse,
		},
		{
			name: "missing required attribute",
			src: `pipeline "p" {
  stage "Source" {
    source "s" {
      owner = "a"
    }
  }
}`,
			kind: errs.KindParse,
		},
		{
			name: "bad trigger",
			src: `pipeline "p" {
  stage "Source" {
    source "s" {
      owner   = "a"
      repo    = "b"
      trigger = "cron"
    }
  }
}`,
			kind: errs.KindParse,
		},
		{
			name: "bad template",
			src: `pipeline "p" {
  stage "Source" {
    source "s" {
      owner = "a"
      repo  = "b"
    }
  }
  stage "Deploy" {
    deploy_stack "d" {
      stack_name = "S"
      template   = "no-separator"
    }
  }
}`,
			kind: errs.KindParse,
		},
		{
			name: "bad action mode",
			src: `pipeline "p" {
  stage "Source" {
    source "s" {
      owner  = "a"
      repo   = "b"
      output = "Src"
    }
  }
  stage "Deploy" {
    deploy_stack "d" {
      stack_name  = "S"
      template    = "Src::template.json"
      action_mode = "UPSERT"
    }
  }
}`,
			kind: errs.KindParse,
		},
		{
			name: "build in first stage",
			src: `pipeline "p" {
  stage "Build" {
    build "b" {
      input = "x"
    }
  }
}`,
			kind: errs.KindConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(t, nil).Parse([]byte(tt.src), "test.hcl")
			if got := errs.KindOf(err); got != tt.kind {
				t.Errorf("KindOf(err) = %q, want %q (err %v)", got, tt.kind, err)
			}
		})
	}
}

func TestParse_ActionOrderFollowsSource(t *testing.T) {
	src := `pipeline "p" {
  stage "Source" {
    source "s" {
      owner  = "a"
      repo   = "b"
      output = "Src"
    }
  }
  stage "Build" {
    test "Lint" {
      input = "Src"
    }
    build "Compile" {
      input = "Src"
    }
  }
}`
	defs, err := newLoader(t, nil).Parse([]byte(src), "order.hcl")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	build, _ := defs[0].Stage("Build")
	if build.Actions[0].Name() != "Lint" || build.Actions[1].Name() != "Compile" {
		t.Errorf("actions = %s, %s; want Lint, Compile", build.Actions[0].Name(), build.Actions[1].Name())
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile("testdata/production.hcl")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.hcl"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	defs, err := newLoader(t, nil).Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(defs) != 1 {
		t.Errorf("Expected 1 pipeline, got %d", len(defs))
	}

	// The same pipeline twice is rejected.
	if err := os.WriteFile(filepath.Join(dir, "b.hcl"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newLoader(t, nil).Load(dir); !errs.IsConfiguration(err) {
		t.Errorf("Load() duplicate error = %v, want ConfigurationError", err)
	}
}

func TestLoad_RenderedDeclaration(t *testing.T) {
	defs, err := newLoader(t, nil).Load("testdata/production.hcl")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	data, err := pipeline.Render(defs[0]).JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("declaration is not JSON: %v", err)
	}
	if doc["webhook"] == nil {
		t.Errorf("declaration has no webhook: %s", data)
	}
}
