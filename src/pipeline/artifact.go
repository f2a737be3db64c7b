package pipeline

import (
	"encoding/json"
	"fmt"
)

// Artifact is a symbolic handle to a named bundle of files produced by one
// action and consumed by later ones. Its storage location is only known once
// the pipeline runs, so it is referenced through deferred expressions.
//
// An artifact created with an empty name is named "Artifact_<Stage>_<Action>"
// in the graph Build returns. The handle passed to Build keeps its empty name.
type Artifact struct {
	name string
}

// NewArtifact creates an artifact handle.
func NewArtifact(name string) *Artifact {
	return &Artifact{name: name}
}

// Name returns the artifact name, or "" for an unnamed artifact.
func (a *Artifact) Name() string {
	if a == nil {
		return ""
	}
	return a.name
}

// AtPath references a file inside the artifact, rendered as "Name::path".
func (a *Artifact) AtPath(path string) ArtifactPath {
	return ArtifactPath{Artifact: a, Path: path}
}

// BucketName is the deferred bucket of the artifact's storage location.
func (a *Artifact) BucketName() Expr {
	return GetArtifactAtt{Artifact: a, Attribute: AttrBucketName}
}

// ObjectKey is the deferred object key of the artifact's storage location.
func (a *Artifact) ObjectKey() Expr {
	return GetArtifactAtt{Artifact: a, Attribute: AttrObjectKey}
}

// Location is the deferred storage location of the artifact.
func (a *Artifact) Location() Location {
	return Location{Bucket: a.BucketName(), Key: a.ObjectKey()}
}

func (a *Artifact) String() string {
	if a.Name() == "" {
		return "<unnamed artifact>"
	}
	return a.name
}

// ArtifactPath names a file within an artifact.
type ArtifactPath struct {
	Artifact *Artifact
	Path     string
}

func (p ArtifactPath) String() string {
	return p.Artifact.Name() + "::" + p.Path
}

// Location is a storage location whose parts may still be deferred.
type Location struct {
	Bucket Expr
	Key    Expr
}

// Artifact attribute names understood by GetArtifactAtt.
const (
	AttrBucketName = "BucketName"
	AttrObjectKey  = "ObjectKey"
)

// Expr is a parameter value that is either literal or resolved at run time.
type Expr interface {
	fmt.Stringer
	json.Marshaler
	// Resolve produces the concrete value once artifact locations are known.
	Resolve(r LocationResolver) (string, error)
}

// GetArtifactAtt defers to an attribute of an artifact's storage location.
type GetArtifactAtt struct {
	Artifact  *Artifact
	Attribute string
}

func (g GetArtifactAtt) String() string {
	return g.Artifact.Name() + "." + g.Attribute
}

func (g GetArtifactAtt) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]string{
		"Fn::GetArtifactAtt": {g.Artifact.Name(), g.Attribute},
	})
}

func (g GetArtifactAtt) Resolve(r LocationResolver) (string, error) {
	name := g.Artifact.Name()
	loc, ok := r.ArtifactLocation(name)
	if !ok {
		return "", wrapConfig(ErrUnresolvedArtifact, "artifact %q has no recorded location", name)
	}
	switch g.Attribute {
	case AttrBucketName:
		return loc.BucketName, nil
	case AttrObjectKey:
		return loc.ObjectKey, nil
	default:
		return "", wrapConfig(ErrUnresolvedArtifact, "artifact %q has no attribute %q", name, g.Attribute)
	}
}

// Literal is an expression with a value known at definition time.
type Literal string

func (l Literal) String() string { return string(l) }

func (l Literal) MarshalJSON() ([]byte, error) { return json.Marshal(string(l)) }

func (l Literal) Resolve(LocationResolver) (string, error) { return string(l), nil }

func sameExpr(a, b Expr) bool {
	switch x := a.(type) {
	case GetArtifactAtt:
		y, ok := b.(GetArtifactAtt)
		return ok && x.Artifact == y.Artifact && x.Attribute == y.Attribute
	case Literal:
		y, ok := b.(Literal)
		return ok && x == y
	default:
		return false
	}
}

// ResolvedLocation is the concrete storage location of an artifact.
type ResolvedLocation struct {
	BucketName string `json:"bucketName"`
	ObjectKey  string `json:"objectKey"`
}

// LocationResolver looks up concrete artifact locations by artifact name.
type LocationResolver interface {
	ArtifactLocation(name string) (ResolvedLocation, bool)
}

// Locations is a map-backed LocationResolver.
type Locations map[string]ResolvedLocation

func (l Locations) ArtifactLocation(name string) (ResolvedLocation, bool) {
	loc, ok := l[name]
	return loc, ok
}
