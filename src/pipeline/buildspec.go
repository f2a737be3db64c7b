package pipeline

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// BuildSpec describes the commands a build action runs and the files it
// extracts into output artifacts.
type BuildSpec struct {
	Install   []string
	PreBuild  []string
	Build     []string
	PostBuild []string
	Env       map[string]string
	// Artifacts lists one extraction manifest per output artifact.
	Artifacts []ArtifactFiles
	// Reports lists the JUnit XML test reports uploaded per report group.
	Reports []ReportFiles
}

// ReportFiles selects the JUnit XML files of one report group.
type ReportFiles struct {
	Group         string
	BaseDirectory string
	Files         []string
}

// ArtifactFiles selects the files copied into an output artifact.
type ArtifactFiles struct {
	Artifact      *Artifact
	BaseDirectory string
	Files         []string
}

// Commands returns every command in phase order.
func (s BuildSpec) Commands() []string {
	var all []string
	all = append(all, s.Install...)
	all = append(all, s.PreBuild...)
	all = append(all, s.Build...)
	return append(all, s.PostBuild...)
}

type buildSpecDoc struct {
	Version   string               `yaml:"version"`
	Env       *envDoc              `yaml:"env,omitempty"`
	Phases    phasesDoc            `yaml:"phases"`
	Artifacts *artifactsSection    `yaml:"artifacts,omitempty"`
	Reports   map[string]reportDoc `yaml:"reports,omitempty"`
}

type reportDoc struct {
	Files         []string `yaml:"files"`
	BaseDirectory string   `yaml:"base-directory,omitempty"`
	FileFormat    string   `yaml:"file-format"`
}

type envDoc struct {
	Variables map[string]string `yaml:"variables"`
}

type phasesDoc struct {
	Install   *phaseDoc `yaml:"install,omitempty"`
	PreBuild  *phaseDoc `yaml:"pre_build,omitempty"`
	Build     *phaseDoc `yaml:"build,omitempty"`
	PostBuild *phaseDoc `yaml:"post_build,omitempty"`
}

type phaseDoc struct {
	Commands []string `yaml:"commands"`
}

type filesDoc struct {
	BaseDirectory string   `yaml:"base-directory,omitempty"`
	Files         []string `yaml:"files"`
	Name          string   `yaml:"name,omitempty"`
}

type artifactsSection struct {
	filesDoc  `yaml:",inline"`
	Secondary map[string]filesDoc `yaml:"secondary-artifacts,omitempty"`
}

func phase(commands []string) *phaseDoc {
	if len(commands) == 0 {
		return nil
	}
	return &phaseDoc{Commands: commands}
}

// YAML renders the build specification document. A single output is written
// as the primary artifact; several outputs are written as secondary artifacts
// keyed by artifact name.
func (s BuildSpec) YAML() ([]byte, error) {
	doc := buildSpecDoc{
		Version: "0.2",
		Phases: phasesDoc{
			Install:   phase(s.Install),
			PreBuild:  phase(s.PreBuild),
			Build:     phase(s.Build),
			PostBuild: phase(s.PostBuild),
		},
	}
	if len(s.Env) > 0 {
		doc.Env = &envDoc{Variables: s.Env}
	}

	switch len(s.Artifacts) {
	case 0:
	case 1:
		a := s.Artifacts[0]
		doc.Artifacts = &artifactsSection{filesDoc: filesDoc{
			BaseDirectory: a.BaseDirectory,
			Files:         filesOrAll(a.Files),
			Name:          a.Artifact.Name(),
		}}
	default:
		// Secondary artifacts need a placeholder primary file list.
		doc.Artifacts = &artifactsSection{
			filesDoc:  filesDoc{Files: []string{"**/*"}},
			Secondary: make(map[string]filesDoc, len(s.Artifacts)),
		}
		for _, a := range s.Artifacts {
			name := a.Artifact.Name()
			if name == "" {
				return nil, fmt.Errorf("secondary artifact has no name; build the pipeline before rendering")
			}
			doc.Artifacts.Secondary[name] = filesDoc{
				BaseDirectory: a.BaseDirectory,
				Files:         filesOrAll(a.Files),
			}
		}
	}

	if len(s.Reports) > 0 {
		doc.Reports = make(map[string]reportDoc, len(s.Reports))
		for _, r := range s.Reports {
			doc.Reports[r.Group] = reportDoc{
				Files:         filesOrAll(r.Files),
				BaseDirectory: r.BaseDirectory,
				FileFormat:    "JUNITXML",
			}
		}
	}

	return yaml.Marshal(doc)
}

// ParseBuildSpec reads a rendered build specification back. Artifact handles
// are created fresh from the artifact names found in the document.
func ParseBuildSpec(data []byte) (BuildSpec, error) {
	var doc buildSpecDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return BuildSpec{}, fmt.Errorf("failed to parse build spec: %w", err)
	}

	spec := BuildSpec{}
	if doc.Env != nil {
		spec.Env = doc.Env.Variables
	}
	if doc.Phases.Install != nil {
		spec.Install = doc.Phases.Install.Commands
	}
	if doc.Phases.PreBuild != nil {
		spec.PreBuild = doc.Phases.PreBuild.Commands
	}
	if doc.Phases.Build != nil {
		spec.Build = doc.Phases.Build.Commands
	}
	if doc.Phases.PostBuild != nil {
		spec.PostBuild = doc.Phases.PostBuild.Commands
	}

	if doc.Artifacts != nil {
		if len(doc.Artifacts.Secondary) > 0 {
			for _, name := range sortedKeys(doc.Artifacts.Secondary) {
				f := doc.Artifacts.Secondary[name]
				spec.Artifacts = append(spec.Artifacts, ArtifactFiles{
					Artifact:      NewArtifact(name),
					BaseDirectory: f.BaseDirectory,
					Files:         f.Files,
				})
			}
		} else {
			spec.Artifacts = append(spec.Artifacts, ArtifactFiles{
				Artifact:      NewArtifact(doc.Artifacts.Name),
				BaseDirectory: doc.Artifacts.BaseDirectory,
				Files:         doc.Artifacts.Files,
			})
		}
	}

	for _, group := range sortedKeys(doc.Reports) {
		r := doc.Reports[group]
		spec.Reports = append(spec.Reports, ReportFiles{Group: group, BaseDirectory: r.BaseDirectory, Files: r.Files})
	}

	return spec, nil
}

func filesOrAll(files []string) []string {
	if len(files) == 0 {
		return []string{"**/*"}
	}
	return files
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
