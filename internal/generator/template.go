package generator

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/ngaot/internal/model"
)

// builtin renders a minimal factory module next to the unit: an injector and
// factory per NgModule, importing the factories of the components it
// declares from other files, and a view class and factory per component.
// A summary artifact is emitted alongside.
func builtin(unit model.AnalyzedUnit, analysis *model.Analysis) ([]model.Artifact, error) {
	base := strings.TrimSuffix(unit.SrcPath, filepath.Ext(unit.SrcPath))
	dir := filepath.Dir(unit.SrcPath)

	var b strings.Builder
	fmt.Fprintf(&b, "import * as i0 from './%s';\n", filepath.Base(base))

	imported := 1
	for _, dep := range declaredElsewhere(unit, analysis) {
		rel, err := filepath.Rel(dir, strings.TrimSuffix(dep, filepath.Ext(dep)))
		if err != nil {
			return nil, fmt.Errorf("generating %s: %w", unit.SrcPath, err)
		}
		fmt.Fprintf(&b, "import * as i%d from './%s.ngfactory';\n", imported, filepath.ToSlash(rel))
		imported++
	}

	for _, m := range unit.NgModules {
		fmt.Fprintf(&b, "\nexport class %sInjector {\n  constructor(public parent: any) {}\n}\n", m.Name)
		fmt.Fprintf(&b, "export const %sNgFactory = { moduleType: i0.%s, create: (parent: any) => new %sInjector(parent) };\n",
			m.Name, m.Name, m.Name)
	}
	for _, d := range unit.Directives {
		if d.Decorator != model.Component {
			continue
		}
		fmt.Fprintf(&b, "\nexport class View_%s_0 {}\n", d.Name)
		fmt.Fprintf(&b, "export const %sNgFactory = { componentType: i0.%s, view: View_%s_0 };\n", d.Name, d.Name, d.Name)
	}

	summary, err := json.Marshal(unit)
	if err != nil {
		return nil, fmt.Errorf("generating summary of %s: %w", unit.SrcPath, err)
	}

	return []model.Artifact{
		{GenPath: base + ".ngfactory.ts", Source: b.String(), SrcPath: unit.SrcPath},
		{GenPath: base + ".ngsummary.json", Source: string(summary), SrcPath: unit.SrcPath},
	}, nil
}

// declaredElsewhere returns the files of components declared by the unit's
// modules that live in other files, sorted.
func declaredElsewhere(unit model.AnalyzedUnit, analysis *model.Analysis) []string {
	seen := make(map[string]bool)
	for _, other := range analysis.Units {
		if other.SrcPath == unit.SrcPath {
			continue
		}
		for _, d := range other.Directives {
			if d.Decorator != model.Component {
				continue
			}
			module, ok := analysis.ModuleOf[d.Name]
			if ok && module.FilePath == unit.SrcPath {
				seen[other.SrcPath] = true
			}
		}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
