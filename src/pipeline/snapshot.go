package pipeline

import (
	"maps"
	"slices"
)

// snapshot copies the actions of specs so that a Definition owns every
// artifact handle, map and slice it refers to. Handles shared by several
// actions stay shared between the copies. Action types defined outside this
// package are kept as given.
func snapshot(specs []StageSpec) []StageSpec {
	c := artifactCopies{}
	out := make([]StageSpec, len(specs))
	for i, spec := range specs {
		actions := make([]Action, len(spec.Actions))
		for j, a := range spec.Actions {
			actions[j] = c.action(a)
		}
		out[i] = StageSpec{Name: spec.Name, Actions: actions}
	}
	return out
}

// artifactCopies maps caller handles to the definition's handles.
type artifactCopies map[*Artifact]*Artifact

func (c artifactCopies) of(a *Artifact) *Artifact {
	if a == nil {
		return nil
	}
	if cp, ok := c[a]; ok {
		return cp
	}
	cp := &Artifact{name: a.name}
	c[a] = cp
	return cp
}

func (c artifactCopies) list(artifacts []*Artifact) []*Artifact {
	if artifacts == nil {
		return nil
	}
	out := make([]*Artifact, len(artifacts))
	for i, a := range artifacts {
		out[i] = c.of(a)
	}
	return out
}

func (c artifactCopies) action(a Action) Action {
	switch a := a.(type) {
	case *SourceAction:
		props := a.props
		props.Output = c.of(props.Output)
		return &SourceAction{name: a.name, props: props}

	case *BuildAction:
		props := a.props.clone()
		props.Input = c.of(props.Input)
		props.ExtraInputs = c.list(props.ExtraInputs)
		for i := range props.Spec.Artifacts {
			props.Spec.Artifacts[i].Artifact = c.of(props.Spec.Artifacts[i].Artifact)
		}
		return &BuildAction{name: a.name, category: a.category, props: props}

	case *StackDeployAction:
		props := a.props.clone()
		props.Template.Artifact = c.of(props.Template.Artifact)
		props.ExtraInputs = c.list(props.ExtraInputs)
		for name, expr := range props.Parameters {
			if att, ok := expr.(GetArtifactAtt); ok {
				att.Artifact = c.of(att.Artifact)
				props.Parameters[name] = att
			}
		}
		return &StackDeployAction{name: a.name, props: props}

	case *BucketDeployAction:
		props := a.props
		props.Input = c.of(props.Input)
		return &BucketDeployAction{name: a.name, props: props}

	default:
		return a
	}
}

func (s BuildSpec) clone() BuildSpec {
	s.Install = slices.Clone(s.Install)
	s.PreBuild = slices.Clone(s.PreBuild)
	s.Build = slices.Clone(s.Build)
	s.PostBuild = slices.Clone(s.PostBuild)
	s.Env = maps.Clone(s.Env)
	s.Artifacts = slices.Clone(s.Artifacts)
	for i := range s.Artifacts {
		s.Artifacts[i].Files = slices.Clone(s.Artifacts[i].Files)
	}
	s.Reports = slices.Clone(s.Reports)
	for i := range s.Reports {
		s.Reports[i].Files = slices.Clone(s.Reports[i].Files)
	}
	return s
}

func (p BuildProps) clone() BuildProps {
	p.ExtraInputs = slices.Clone(p.ExtraInputs)
	p.Spec = p.Spec.clone()
	p.Environment = maps.Clone(p.Environment)
	return p
}

func (p StackDeployProps) clone() StackDeployProps {
	if p.Parameters != nil {
		p.Parameters = p.Parameters.clone()
	}
	p.ExtraInputs = slices.Clone(p.ExtraInputs)
	p.Capabilities = slices.Clone(p.Capabilities)
	p.Hooks = slices.Clone(p.Hooks)
	return p
}
