package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"stackline/src/contracts"
	"stackline/src/errs"
	"stackline/src/pipeline"
	"stackline/src/stacks"
	"stackline/src/store"
)

const defaultExecutionLimit = 5

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleValidatePipeline handles the validate_pipeline tool call. An invalid
// definition is a normal result, not a tool error.
func (s *Server) handleValidatePipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	source := request.GetString("source", "")

	var (
		defs []*pipeline.Definition
		err  error
	)
	switch {
	case path != "":
		defs, err = s.loader.Load(path)
	case source != "":
		defs, err = s.loader.Parse([]byte(source), "source.hcl")
	default:
		return mcp.NewToolResultError("path or source parameter is required"), nil
	}

	if err != nil {
		s.log.Debug("pipeline definition is invalid", "error", err)
		return textResult(ValidationResult{Valid: false, Error: errs.Properties(err)})
	}

	s.cache.Put(defs...)
	result := ValidationResult{Valid: true}
	for _, d := range defs {
		result.Pipelines = append(result.Pipelines, summarize(d))
	}
	return textResult(result)
}

// handleRenderPipeline handles the render_pipeline tool call.
func (s *Server) handleRenderPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := map[string]any{}

	if name := request.GetString("name", ""); name != "" {
		def, ok := s.cache.Get(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("pipeline %q has not been validated in this session (known: %v)", name, s.cache.Names())), nil
		}
		out["declaration"] = pipeline.Render(def)
		return textResult(out)
	}

	cfg := *s.cfg
	cfg.PRNumber = ""
	if request.GetString("variant", "production") == "integration" {
		cfg.PRNumber = request.GetString("pr_number", "")
		if cfg.PRNumber == "" {
			return mcp.NewToolResultError("pr_number parameter is required for the integration variant"), nil
		}
	}

	infra := stacks.NewInfrastructure(&cfg)
	def, err := stacks.Pipeline(&cfg, infra, s.log)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build pipeline: %v", err)), nil
	}
	s.cache.Put(def)
	out["declaration"] = pipeline.Render(def)

	if request.GetBool("include_template", false) {
		tpl, err := infra.Template()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to synthesize template: %v", err)), nil
		}
		out["template"] = json.RawMessage(tpl)
	}
	return textResult(out)
}

// handleGetExecution handles the get_execution tool call.
func (s *Server) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.executions == nil {
		return mcp.NewToolResultError("no execution store is configured"), nil
	}

	name := request.GetString("pipeline", "")
	if name == "" {
		return mcp.NewToolResultError("pipeline parameter is required"), nil
	}

	if id := request.GetString("execution_id", ""); id != "" {
		rec, err := s.executions.GetExecution(ctx, name, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("execution not found: pipeline=%s, execution_id=%s", name, id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get execution: %v", err)), nil
		}
		return textResult(summarizeExecution(rec, true))
	}

	limit := request.GetInt("limit", defaultExecutionLimit)
	if limit <= 0 {
		limit = defaultExecutionLimit
	}
	recs, err := s.executions.ListExecutions(ctx, name, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list executions: %v", err)), nil
	}
	summaries := make([]ExecutionSummary, 0, len(recs))
	for i := range recs {
		summaries = append(summaries, summarizeExecution(&recs[i], false))
	}
	return textResult(summaries)
}

func summarize(d *pipeline.Definition) PipelineSummary {
	sum := PipelineSummary{Name: d.Name(), ArtifactStore: d.ArtifactStore(), Artifacts: d.Artifacts()}
	for _, st := range d.Plan() {
		stage := StageSummary{Name: st.Name}
		for _, group := range st.Groups {
			names := make([]string, 0, len(group))
			for _, a := range group {
				names = append(names, a.Name())
			}
			stage.Groups = append(stage.Groups, names)
		}
		sum.Stages = append(sum.Stages, stage)
	}
	return sum
}

// summarizeExecution compacts rec. Action details are only included when
// detailed is set.
func summarizeExecution(rec *contracts.ExecutionRecord, detailed bool) ExecutionSummary {
	sum := ExecutionSummary{
		Pipeline:    rec.PipelineName,
		ExecutionID: rec.ExecutionID,
		Status:      rec.Status,
		StartedAt:   rec.StartedAt.UTC().Format(time.RFC3339),
	}
	if len(rec.Revisions) > 0 {
		sum.Revision = rec.Revisions[0].RevisionID
	}
	if rec.Error != "" {
		sum.Error = compressMessage(rec.Error, maxMessageLines)
	}
	if !detailed {
		return sum
	}
	for _, st := range rec.Stages {
		for _, a := range st.Actions {
			action := ActionSummary{Stage: st.Name, Action: a.Name, Status: a.Status}
			if a.Message != "" {
				action.Message = compressMessage(a.Message, maxMessageLines)
			}
			sum.Actions = append(sum.Actions, action)
		}
	}
	return sum
}
