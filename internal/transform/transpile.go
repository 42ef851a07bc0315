package transform

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/phobologic/ngaot/internal/sourcemap"
)

const defaultTsconfig = `{"compilerOptions":{"experimentalDecorators":true}}`

// Options configures transpilation.
type Options struct {
	// Target is the ECMAScript level to lower to, e.g. "es2015".
	Target string
	// TsconfigRaw is a tsconfig document whose compilerOptions steer the
	// TypeScript lowering (decorators, class fields).
	TsconfigRaw string
	// SourceRoot is written to the sourceRoot field of every map.
	SourceRoot string
	// ComposeSourceMap maps edited units back to their original text. Turned
	// off for generated units, whose maps nobody reads.
	ComposeSourceMap bool
}

func (o Options) withDefaults() Options {
	if o.TsconfigRaw == "" {
		o.TsconfigRaw = defaultTsconfig
	}
	return o
}

// Result is a transpiled unit.
type Result struct {
	Code string
	Map  *sourcemap.Map
	// Edited reports whether the unit was rewritten before transpiling.
	Edited bool
}

// Transpile lowers the edited text to JavaScript. When the unit was edited
// the transpiler's map (edited -> emitted) is composed with the edit map
// (original -> edited) so the result points at the original text; an
// unedited unit returns the transpiler's map untouched.
func (f *File) Transpile() (*Result, error) {
	edits := f.editor.Apply()

	loader := api.LoaderTS
	if strings.HasSuffix(f.Path, ".tsx") {
		loader = api.LoaderTSX
	}
	out := api.Transform(edits.Text, api.TransformOptions{
		Loader:      loader,
		Sourcefile:  f.Path,
		Sourcemap:   api.SourceMapExternal,
		SourceRoot:  f.opts.SourceRoot,
		Target:      Target(f.opts.Target),
		TsconfigRaw: f.opts.TsconfigRaw,
	})
	if len(out.Errors) > 0 {
		return nil, transpileError(f.Path, out.Errors)
	}

	m, err := sourcemap.Parse(out.Map)
	if err != nil {
		return nil, fmt.Errorf("transpiling %s: %w", f.Path, err)
	}

	res := &Result{Code: string(out.Code), Map: m, Edited: f.Edited()}
	if !res.Edited || !f.opts.ComposeSourceMap {
		return res, nil
	}

	composed, err := sourcemap.Compose(m, edits, f.Path, f.editor.Original())
	if err != nil {
		return nil, fmt.Errorf("composing source map for %s: %w", f.Path, err)
	}
	composed.File = strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path)) + ".js"
	composed.SourceRoot = m.SourceRoot
	res.Map = composed
	return res, nil
}

// Target maps a tsconfig target name to the transpiler's. Levels below
// ES2015 clamp to ES2015, the lowest the transpiler can emit classes for.
func Target(name string) api.Target {
	switch strings.ToLower(name) {
	case "es3", "es5", "es6", "es2015":
		return api.ES2015
	case "es2016":
		return api.ES2016
	case "es2017":
		return api.ES2017
	case "es2018":
		return api.ES2018
	case "es2019":
		return api.ES2019
	case "es2020":
		return api.ES2020
	case "es2021":
		return api.ES2021
	case "es2022":
		return api.ES2022
	default:
		return api.ESNext
	}
}

func transpileError(path string, msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			errs = append(errs, fmt.Errorf("%s:%d:%d: %s", path, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %s", path, m.Text))
	}
	return errors.Join(errs...)
}
