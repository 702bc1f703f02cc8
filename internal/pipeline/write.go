package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type staged struct {
	tmp, path string
}

// Write places every artifact of set under dir. All contents are staged
// in temporary files next to their targets first; targets are replaced
// only once every artifact has been staged, each with a rename.
func Write(ctx context.Context, set *ArtifactSet, dir string) error {
	var pending []staged
	cleanup := func() {
		for _, s := range pending {
			_ = os.Remove(s.tmp)
		}
	}

	for _, a := range set.Artifacts {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		path := filepath.FromSlash(a.Path)
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		tmp, err := stageFile(path, []byte(a.Content))
		if err != nil {
			cleanup()
			return fmt.Errorf("writing %s: %w", a.Path, err)
		}
		pending = append(pending, staged{tmp: tmp, path: path})
	}

	for i, s := range pending {
		if err := os.Rename(s.tmp, s.path); err != nil {
			cleanup()
			return fmt.Errorf("rename %s: %w (%d of %d artifacts written)", s.path, err, i, len(pending))
		}
		pending[i].tmp = ""
	}

	Logger().Info("artifacts written", zap.String("dir", dir), zap.Int("count", len(pending)))
	return nil
}

// stageFile writes data to a temporary file in the target's directory and
// returns its name
func stageFile(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".scfmu-*.tmp")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return tmp.Name(), nil
}
