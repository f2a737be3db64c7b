package definition

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"stackline/src/config"
)

// envFunc returns env(name, default): the variable's value, or default when unset or empty.
func envFunc(lookup func(string) (string, bool)) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
			{Name: "default", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			if v, ok := lookup(args[0].AsString()); ok && v != "" {
				return cty.StringVal(v), nil
			}
			return args[1], nil
		},
	})
}

// evalContext exposes the deployment environment to definition files.
func evalContext(cfg *config.Config, lookup func(string) (string, bool)) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"pr_number":   cty.StringVal(cfg.PRNumber),
			"head_ref":    cty.StringVal(cfg.Branch()),
			"environment": cty.StringVal(cfg.Environment()),
			"region":      cty.StringVal(cfg.AWSRegion),
		},
		Functions: map[string]function.Function{
			"env":    envFunc(lookup),
			"lower":  stdlib.LowerFunc,
			"upper":  stdlib.UpperFunc,
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"concat": stdlib.ConcatFunc,
		},
	}
}
