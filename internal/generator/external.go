package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/phobologic/ngaot/internal/model"
)

type request struct {
	Unit     model.AnalyzedUnit      `json:"unit"`
	ModuleOf map[string]model.Symbol `json:"ngModuleByPipeOrDirective"`
}

// external runs the generator command with the unit on stdin and decodes the
// artifacts it prints.
func (s *Structural) external(ctx context.Context, unit model.AnalyzedUnit, analysis *model.Analysis) ([]model.Artifact, error) {
	payload, err := json.Marshal(request{Unit: unit, ModuleOf: analysis.ModuleOf})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", unit.SrcPath, err)
	}

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Dir = s.dir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.log.V(2).Info("running generator", "command", s.command[0], "unit", unit.SrcPath)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", s.command[0], err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", s.command[0], err)
	}

	var artifacts []model.Artifact
	if err := json.Unmarshal(stdout.Bytes(), &artifacts); err != nil {
		return nil, fmt.Errorf("decoding output of %s: %w", s.command[0], err)
	}
	for i := range artifacts {
		if artifacts[i].SrcPath == "" {
			artifacts[i].SrcPath = unit.SrcPath
		}
	}
	return artifacts, nil
}
