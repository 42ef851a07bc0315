// Package model defines core data structures for ngaot.
package model

// Decorator names the Angular class decorator a symbol carries.
type Decorator string

const (
	NgModule   Decorator = "NgModule"
	Component  Decorator = "Component"
	Directive  Decorator = "Directive"
	Pipe       Decorator = "Pipe"
	Injectable Decorator = "Injectable"
)

// Symbol is one resolved exported declaration, tagged with its owning file so
// deletions can prune it.
type Symbol struct {
	Name      string    `json:"name"`
	FilePath  string    `json:"filePath"`
	Decorator Decorator `json:"decorator,omitempty"`
	// Erroneous marks a symbol whose metadata could not be resolved. Such
	// symbols are excluded from analysis rather than failing the build.
	Erroneous bool `json:"erroneous,omitempty"`
}

// AnalyzedUnit is the analysis result for one source file: the symbols it
// contributes, grouped by kind.
type AnalyzedUnit struct {
	SrcPath     string   `json:"srcUrl"`
	NgModules   []Symbol `json:"ngModules"`
	Directives  []Symbol `json:"directives"`
	Pipes       []Symbol `json:"pipes"`
	Injectables []Symbol `json:"injectables"`
}

// Analysis is the whole-graph module analysis over a symbol set.
type Analysis struct {
	Units []AnalyzedUnit
	// ModuleOf maps a directive or pipe name to the NgModule declaring it.
	ModuleOf map[string]Symbol
}

// ArtifactKind classifies a generated artifact.
type ArtifactKind string

const (
	ModuleFactory    ArtifactKind = "module-factory"
	ComponentFactory ArtifactKind = "component-factory"
)

// Artifact is one generated output file as produced by the generator.
type Artifact struct {
	GenPath string `json:"genFileUrl"`
	Source  string `json:"source"`
	SrcPath string `json:"srcFileUrl"`
}

// PlacedArtifact is an artifact after root remapping and classification.
type PlacedArtifact struct {
	Artifact
	EmitPath string
	Kind     ArtifactKind
}

// Import names a single named binding of a module specifier.
type Import struct {
	Name   string
	Module string
}

// BuildReport summarizes one compile pass for display. Paths are relative to
// the project base path.
type BuildReport struct {
	Project   string
	GenDir    string
	Pass      int
	Artifacts []string
	Errors    []string
	Edges     []ReportEdge
}

// ReportEdge is one dependency edge of a BuildReport.
type ReportEdge struct {
	From string
	To   string
	Kind string
}
