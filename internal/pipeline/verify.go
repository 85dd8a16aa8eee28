package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// verifyArtifact confirms the converter produced a usable MLX layout:
// a config.json plus weights as safetensors (possibly sharded) or npz.
func verifyArtifact(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		return fmt.Errorf("missing config.json in %s", dir)
	}
	ok, err := hasWeights(dir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no weight files in %s", dir)
	}
	return nil
}

func hasWeights(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".safetensors") || strings.HasSuffix(name, ".npz") {
			return true, nil
		}
	}
	return false, nil
}
