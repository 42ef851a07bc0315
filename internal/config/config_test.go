package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/ngaot/internal/compiler"
)

const tsconfig = `{
  "compilerOptions": {
    "target": "es2017",
    "experimentalDecorators": true,
    "rootDirs": ["src", "virtual"]
  },
  "angularCompilerOptions": {
    "genDir": "gen",
    "entryModule": "src/app/app.module#AppModule"
  },
  "files": ["src/main.ts"]
}
`

func TestParse(t *testing.T) {
	p, err := Parse("/proj/tsconfig.json", []byte(tsconfig))
	require.NoError(t, err)

	assert.Equal(t, "/proj", p.BasePath)
	assert.Equal(t, "/proj/gen", p.GenDir)
	assert.Equal(t, []string{"/proj/src", "/proj/virtual"}, p.RootDirs)
	assert.Equal(t, []string{"/proj/src/main.ts"}, p.Files)
	assert.Equal(t, compiler.EntryModule{Path: "src/app/app.module", Name: "AppModule"}, p.Entry)
	assert.Equal(t, "es2017", p.Target)
	assert.JSONEq(t,
		`{"compilerOptions":{"target":"es2017","experimentalDecorators":true,"rootDirs":["src","virtual"]}}`,
		p.TsconfigRaw)
	assert.Empty(t, p.Generator)

	cfg := p.CompilerConfig()
	assert.Equal(t, p.GenDir, cfg.GenDir)
	assert.Equal(t, p.Entry, cfg.Entry)
	assert.Equal(t, "es2017", p.TransformOptions().Target)
	assert.Empty(t, p.TransformOptions().SourceRoot)
}

func TestParseBaseURL(t *testing.T) {
	doc := `{
  "compilerOptions": {"baseUrl": "src"},
  "angularCompilerOptions": {"entryModule": "src/app/app.module#AppModule"}
}`
	p, err := Parse("/proj/tsconfig.json", []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "/proj/src", p.BaseURL)
	assert.Equal(t, "/proj/src", p.TransformOptions().SourceRoot)
}

func TestParseYAMLAndDefaults(t *testing.T) {
	doc := `
angularCompilerOptions:
  basePath: app
  entryModule: ./app.module.ts#AppModule
  generator: node tools/ngc-gen.js --json
`
	p, err := Parse("/proj/tsconfig.yaml", []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "/proj/app", p.BasePath)
	assert.Equal(t, "/proj/app/"+DefaultGenDir, p.GenDir)
	assert.Equal(t, compiler.EntryModule{Path: "./app.module", Name: "AppModule"}, p.Entry)
	assert.Equal(t, []string{"node", "tools/ngc-gen.js", "--json"}, p.Generator)
	assert.Empty(t, p.TsconfigRaw)
	assert.Empty(t, p.Files)
}

func TestParseEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvGenDir, "/tmp/ngaot-gen")
	t.Setenv(EnvGenerator, "ngc-gen")

	p, err := Parse("/proj/tsconfig.json", []byte(tsconfig))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ngaot-gen", p.GenDir)
	assert.Equal(t, []string{"ngc-gen"}, p.Generator)
}

func TestParseRequiresEntryModule(t *testing.T) {
	for _, entry := range []string{"", "src/app.module", "#AppModule", "src/app.module#"} {
		doc := `{"angularCompilerOptions":{"entryModule":"` + entry + `"}}`
		_, err := Parse("/proj/tsconfig.json", []byte(doc))
		require.Error(t, err, entry)
		assert.True(t, compiler.IsConfig(err), entry)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tsconfig.json")
	require.NoError(t, os.WriteFile(path, []byte(tsconfig), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, p.Path)
	assert.Equal(t, filepath.Join(dir, "gen"), p.GenDir)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, compiler.IsConfig(err))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = Load(path)
	assert.True(t, compiler.IsConfig(err))
}
