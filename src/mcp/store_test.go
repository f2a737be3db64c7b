package mcp

import (
	"testing"

	"stackline/src/pipeline"
)

func newDefinition(t *testing.T, name string) *pipeline.Definition {
	t.Helper()
	out := pipeline.NewArtifact("Out")
	def, err := pipeline.Build(name, []pipeline.StageSpec{{
		Name:    "Source",
		Actions: []pipeline.Action{pipeline.NewSource("GitHub_Source", pipeline.SourceProps{Owner: "octo", Repo: "app", Output: out})},
	}})
	if err != nil {
		t.Fatalf("pipeline.Build() error = %v", err)
	}
	return def
}

func TestDefinitionCache(t *testing.T) {
	cache := NewDefinitionCache()

	if _, ok := cache.Get("missing"); ok {
		t.Error("Get() found a pipeline in an empty cache")
	}

	first := newDefinition(t, "b-pipeline")
	cache.Put(first, newDefinition(t, "a-pipeline"))

	got, ok := cache.Get("b-pipeline")
	if !ok || got != first {
		t.Errorf("Get(b-pipeline) = %v, %v", got, ok)
	}

	names := cache.Names()
	if len(names) != 2 || names[0] != "a-pipeline" || names[1] != "b-pipeline" {
		t.Errorf("Names() = %v, want [a-pipeline b-pipeline]", names)
	}

	replacement := newDefinition(t, "b-pipeline")
	cache.Put(replacement)
	if got, _ := cache.Get("b-pipeline"); got != replacement {
		t.Error("Put() did not replace the pipeline with the same name")
	}
	if len(cache.Names()) != 2 {
		t.Errorf("Names() = %v after replacement", cache.Names())
	}
}
