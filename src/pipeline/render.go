package pipeline

import (
	"encoding/json"
)

// Declaration is the rendered, provider-facing form of a Definition.
type Declaration struct {
	Name          string             `json:"name"`
	ArtifactStore *ArtifactStoreDecl `json:"artifactStore,omitempty"`
	Stages        []StageDecl        `json:"stages"`
	Webhook       *WebhookDecl       `json:"webhook,omitempty"`
	Grants        []Grant            `json:"grants,omitempty"`
}

type ArtifactStoreDecl struct {
	Type     string `json:"type"`
	Location string `json:"location"`
}

type StageDecl struct {
	Name    string       `json:"name"`
	Actions []ActionDecl `json:"actions"`
}

type ActionDecl struct {
	Name            string         `json:"name"`
	ActionTypeID    ActionTypeID   `json:"actionTypeId"`
	RunOrder        int            `json:"runOrder"`
	Configuration   map[string]any `json:"configuration"`
	InputArtifacts  []ArtifactRef  `json:"inputArtifacts,omitempty"`
	OutputArtifacts []ArtifactRef  `json:"outputArtifacts,omitempty"`
}

type ActionTypeID struct {
	Category Category `json:"category"`
	Owner    string   `json:"owner"`
	Provider string   `json:"provider"`
	Version  string   `json:"version"`
}

type ArtifactRef struct {
	Name string `json:"name"`
}

// WebhookDecl registers a repository webhook that starts the pipeline on push.
type WebhookDecl struct {
	Name           string          `json:"name"`
	TargetAction   string          `json:"targetAction"`
	Authentication string          `json:"authentication"`
	SecretToken    string          `json:"secretToken"`
	Filters        []WebhookFilter `json:"filters"`
}

type WebhookFilter struct {
	JSONPath    string `json:"jsonPath"`
	MatchEquals string `json:"matchEquals"`
}

// Render converts a definition into its declaration.
func Render(d *Definition) Declaration {
	decl := Declaration{
		Name:   d.name,
		Grants: d.Grants(),
	}
	if d.artifactStore != "" {
		decl.ArtifactStore = &ArtifactStoreDecl{Type: "S3", Location: d.artifactStore}
	}

	for _, stage := range d.stages {
		sd := StageDecl{Name: stage.Name}
		for _, a := range stage.Actions {
			sd.Actions = append(sd.Actions, ActionDecl{
				Name: a.Name(),
				ActionTypeID: ActionTypeID{
					Category: a.Category(),
					Owner:    a.Owner(),
					Provider: a.Provider(),
					Version:  "1",
				},
				RunOrder:        a.RunOrder(),
				Configuration:   a.Configuration(),
				InputArtifacts:  artifactRefs(a.Inputs()),
				OutputArtifacts: artifactRefs(a.Outputs()),
			})
		}
		decl.Stages = append(decl.Stages, sd)
	}

	if src := d.Source(); src != nil && src.props.Trigger == TriggerWebhook {
		decl.Webhook = &WebhookDecl{
			Name:           d.name + "-Webhook",
			TargetAction:   src.Name(),
			Authentication: "GITHUB_HMAC",
			SecretToken:    SecretReference(src.props.WebhookSecret),
			Filters: []WebhookFilter{{
				JSONPath:    "$.ref",
				MatchEquals: "refs/heads/{Branch}",
			}},
		}
		if src.props.WebhookSecret == "" {
			decl.Webhook.SecretToken = SecretReference(src.props.OAuthSecret)
		}
	}

	return decl
}

// JSON renders the declaration as indented JSON.
func (d Declaration) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Action looks up a rendered action by stage and action name.
func (d Declaration) Action(stage, action string) (ActionDecl, bool) {
	for _, s := range d.Stages {
		if s.Name != stage {
			continue
		}
		for _, a := range s.Actions {
			if a.Name == action {
				return a, true
			}
		}
	}
	return ActionDecl{}, false
}

func artifactRefs(artifacts []*Artifact) []ArtifactRef {
	if len(artifacts) == 0 {
		return nil
	}
	refs := make([]ArtifactRef, len(artifacts))
	for i, a := range artifacts {
		refs[i] = ArtifactRef{Name: a.Name()}
	}
	return refs
}
