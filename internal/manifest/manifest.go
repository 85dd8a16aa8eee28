// Package manifest builds and persists the model_info.json sidecar that
// describes a converted artifact for downstream (iOS) consumers.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"mlxconv/pkg/types"
)

// FileName is the sidecar written next to the converted model files.
const FileName = "model_info.json"

// Manifest is the on-disk schema. Written once per successful conversion,
// never mutated afterward.
type Manifest struct {
	ModelName      string `json:"model_name"`
	ModelPath      string `json:"model_path"`
	Quantization   string `json:"quantization"`
	Framework      string `json:"framework"`
	TargetPlatform string `json:"target_platform"`
	ConvertedAt    string `json:"converted_at"`
	Description    string `json:"description"`
	Usage          Usage  `json:"usage"`
}

// Usage captures the device-compatibility constraints of the artifact.
type Usage struct {
	MinIOSVersion      string   `json:"min_ios_version"`
	MinMemoryGB        int      `json:"min_memory_gb"`
	RecommendedDevices []string `json:"recommended_devices"`
}

// recommendedDevices is ordered; consumers display it as-is.
var recommendedDevices = []string{
	"iPhone 15 Pro",
	"iPhone 15 Pro Max",
	"iPad Air M1/M2",
	"iPad Pro M1/M2",
}

// New builds a manifest for a converted artifact. The memory floor depends
// only on the quantization level: 4-bit fits 8 GB devices, everything else
// needs 12.
func New(modelPath, modelID string, quant types.Quantization, description string, now time.Time) Manifest {
	return Manifest{
		ModelName:      modelID,
		ModelPath:      modelPath,
		Quantization:   string(quant),
		Framework:      "MLX",
		TargetPlatform: "iOS",
		ConvertedAt:    now.Format(time.RFC3339),
		Description:    description,
		Usage: Usage{
			MinIOSVersion:      "16.0",
			MinMemoryGB:        MinMemoryGB(quant),
			RecommendedDevices: recommendedDevices,
		},
	}
}

// MinMemoryGB returns the device memory floor for a quantization level.
func MinMemoryGB(quant types.Quantization) int {
	if quant == types.QuantQ4 {
		return 8
	}
	return 12
}

// Write serializes m as indented JSON at <dir>/model_info.json, overwriting
// any previous file. Returns the path written.
func Write(dir string, m Manifest) (string, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
