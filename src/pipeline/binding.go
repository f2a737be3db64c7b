package pipeline

import (
	"fmt"

	"stackline/src/errs"
)

// CodeReference is a pair of template parameters that will receive the
// storage location of a function's code bundle at deploy time.
type CodeReference struct {
	BucketParam string
	KeyParam    string
}

// NewCodeReference derives the parameter pair for a function's logical id,
// e.g. "Consumer" gives "ConsumerS3Bucket" and "ConsumerS3Key".
func NewCodeReference(logicalID string) CodeReference {
	return CodeReference{
		BucketParam: logicalID + "S3Bucket",
		KeyParam:    logicalID + "S3Key",
	}
}

// Params returns the bucket and key parameter names.
func (c CodeReference) Params() []string {
	return []string{c.BucketParam, c.KeyParam}
}

func (c CodeReference) validate() error {
	if c.BucketParam == "" || c.KeyParam == "" {
		return errs.Configuration("code reference needs both a bucket and a key parameter (got %q, %q)", c.BucketParam, c.KeyParam)
	}
	if c.BucketParam == c.KeyParam {
		return errs.Configuration("code reference bucket and key parameters must differ (both %q)", c.BucketParam)
	}
	return nil
}

// Assign maps the code reference's parameters to a storage location. The
// values stay symbolic until the orchestrator resolves them.
func (c CodeReference) Assign(loc Location) (ParameterOverrides, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if loc.Bucket == nil || loc.Key == nil {
		return nil, errs.Configuration("location for %s/%s is incomplete", c.BucketParam, c.KeyParam)
	}
	return ParameterOverrides{
		c.BucketParam: loc.Bucket,
		c.KeyParam:    loc.Key,
	}, nil
}

// CodeBinding pairs a code reference with the artifact that holds the code.
type CodeBinding struct {
	Code     CodeReference
	Artifact *Artifact
}

// Bind assigns every code reference to its artifact's location and merges
// the results. Binding the same pair twice is a no-op; binding one parameter
// to two different locations is a ConfigurationError.
func Bind(bindings ...CodeBinding) (ParameterOverrides, error) {
	out := ParameterOverrides{}
	for _, b := range bindings {
		if b.Artifact == nil {
			return nil, errs.Configuration("code reference %s/%s is bound to no artifact", b.Code.BucketParam, b.Code.KeyParam)
		}
		overrides, err := b.Code.Assign(b.Artifact.Location())
		if err != nil {
			return nil, err
		}
		if out, err = out.Merge(overrides); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ParameterOverrides maps template parameter names to values that may still
// be deferred. It marshals to the override document a stack deployment takes.
type ParameterOverrides map[string]Expr

// Merge returns the union of p and other. It fails when both hold different
// values for the same parameter.
func (p ParameterOverrides) Merge(other ParameterOverrides) (ParameterOverrides, error) {
	merged := p.clone()
	for name, expr := range other {
		if existing, ok := merged[name]; ok && !sameExpr(existing, expr) {
			return nil, wrapConfig(ErrConflictingBinding, "parameter %q bound to %s and %s", name, existing, expr)
		}
		merged[name] = expr
	}
	return merged, nil
}

// Artifacts lists the artifacts the overrides defer to, ordered by parameter name.
func (p ParameterOverrides) Artifacts() []*Artifact {
	var artifacts []*Artifact
	for _, name := range sortedKeys(p) {
		if att, ok := p[name].(GetArtifactAtt); ok {
			artifacts = appendUnique(artifacts, att.Artifact)
		}
	}
	return artifacts
}

// Resolve substitutes concrete artifact locations into every override.
func (p ParameterOverrides) Resolve(r LocationResolver) (map[string]string, error) {
	resolved := make(map[string]string, len(p))
	for _, name := range sortedKeys(p) {
		value, err := p[name].Resolve(r)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		resolved[name] = value
	}
	return resolved, nil
}

func (p ParameterOverrides) clone() ParameterOverrides {
	c := make(ParameterOverrides, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
