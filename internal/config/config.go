// Package config loads a tsconfig.json document and the compiler options
// embedded in it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/phobologic/ngaot/internal/compiler"
	"github.com/phobologic/ngaot/internal/transform"
)

const (
	// DefaultGenDir is used when angularCompilerOptions.genDir is unset.
	DefaultGenDir = "__generated"

	EnvGenDir    = "NGAOT_GEN_DIR"
	EnvGenerator = "NGAOT_GENERATOR"
)

type document struct {
	CompilerOptions struct {
		RootDirs []string `json:"rootDirs"`
		Target   string   `json:"target"`
		BaseURL  string   `json:"baseUrl"`
	} `json:"compilerOptions"`
	AngularCompilerOptions struct {
		BasePath    string `json:"basePath"`
		GenDir      string `json:"genDir"`
		EntryModule string `json:"entryModule"`
		Generator   string `json:"generator"`
	} `json:"angularCompilerOptions"`
	Files []string `json:"files"`
}

// Project is a loaded configuration with every path made absolute.
type Project struct {
	// Path is the tsconfig file.
	Path     string
	BasePath string
	GenDir   string
	RootDirs []string
	BaseURL  string
	Entry    compiler.EntryModule
	// Files lists the initial units. Empty means discover them.
	Files     []string
	Target    string
	Generator []string
	// TsconfigRaw carries the compilerOptions to the transpiler unchanged.
	TsconfigRaw string
}

// Load reads the tsconfig at path. NGAOT_GEN_DIR and NGAOT_GENERATOR
// override the file.
func Load(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &compiler.ConfigError{Field: "tsconfig", Err: err}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &compiler.ConfigError{Field: "tsconfig", Err: err}
	}
	return Parse(abs, data)
}

// Parse builds a project from the tsconfig document data found at path.
// The document may be JSON or YAML.
func Parse(path string, data []byte) (*Project, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &compiler.ConfigError{Field: "tsconfig", Err: fmt.Errorf("decoding %s: %w", path, err)}
	}

	var raw struct {
		CompilerOptions json.RawMessage `json:"compilerOptions"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &compiler.ConfigError{Field: "compilerOptions", Err: err}
	}

	dir := filepath.Dir(path)
	p := &Project{
		Path:     path,
		BasePath: absolute(dir, doc.AngularCompilerOptions.BasePath, dir),
		Target:   doc.CompilerOptions.Target,
	}
	if doc.CompilerOptions.BaseURL != "" {
		p.BaseURL = absolute(dir, doc.CompilerOptions.BaseURL, dir)
	}

	genDir := doc.AngularCompilerOptions.GenDir
	if env := strings.TrimSpace(os.Getenv(EnvGenDir)); env != "" {
		genDir = env
	}
	if genDir == "" {
		genDir = DefaultGenDir
	}
	p.GenDir = absolute(p.BasePath, genDir, p.BasePath)

	for _, r := range doc.CompilerOptions.RootDirs {
		p.RootDirs = append(p.RootDirs, absolute(dir, r, dir))
	}
	for _, f := range doc.Files {
		p.Files = append(p.Files, absolute(dir, f, dir))
	}

	entry := doc.AngularCompilerOptions.EntryModule
	modulePath, name, ok := strings.Cut(entry, "#")
	if !ok || modulePath == "" || name == "" {
		return nil, &compiler.ConfigError{
			Field: "angularCompilerOptions.entryModule",
			Err:   fmt.Errorf("want path#ExportName, got %q", entry),
		}
	}
	p.Entry = compiler.EntryModule{Path: strings.TrimSuffix(modulePath, ".ts"), Name: name}

	generator := doc.AngularCompilerOptions.Generator
	if env := strings.TrimSpace(os.Getenv(EnvGenerator)); env != "" {
		generator = env
	}
	p.Generator = strings.Fields(generator)

	if len(raw.CompilerOptions) > 0 {
		p.TsconfigRaw = fmt.Sprintf(`{"compilerOptions":%s}`, raw.CompilerOptions)
	}
	return p, nil
}

// CompilerConfig returns the part of the project the compiler consumes.
func (p *Project) CompilerConfig() compiler.Config {
	return compiler.Config{
		BasePath: p.BasePath,
		GenDir:   p.GenDir,
		RootDirs: p.RootDirs,
		Entry:    p.Entry,
	}
}

// TransformOptions returns the transpiler settings of the project.
func (p *Project) TransformOptions() transform.Options {
	return transform.Options{
		Target:      p.Target,
		TsconfigRaw: p.TsconfigRaw,
		SourceRoot:  p.BaseURL,
	}
}

func absolute(base, path, fallback string) string {
	if path == "" {
		return filepath.Clean(fallback)
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
