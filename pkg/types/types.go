package types

import "time"

// CatalogEntry describes a convertible model known to the tool.
type CatalogEntry struct {
	// Stable identifier used on the command line.
	// example: deepseek-r1-8b
	ID string `json:"id"`
	// Hugging Face repository the weights are pulled from.
	// example: deepseek-ai/DeepSeek-R1-Distill-Llama-8B
	HFPath string `json:"hf_path"`
	// Human-friendly description.
	Description string `json:"description"`
}

// Quantization selects the precision of the converted weights.
type Quantization string

const (
	QuantQ4   Quantization = "q4"
	QuantQ8   Quantization = "q8"
	QuantNone Quantization = "none"
)

// Valid reports whether q is one of the supported levels.
func (q Quantization) Valid() bool {
	switch q {
	case QuantQ4, QuantQ8, QuantNone:
		return true
	}
	return false
}

// ConversionRequest is a single run of the conversion pipeline.
type ConversionRequest struct {
	ModelID      string       `json:"model_id"`
	OutputDir    string       `json:"output_dir"`
	Quantization Quantization `json:"quantization"`
	OptimizeIOS  bool         `json:"optimize_ios,omitempty"`
}

// ConversionResult summarizes a finished run.
type ConversionResult struct {
	// Final artifact directory, distinct from the requested base path.
	OutputPath string        `json:"output_path"`
	SizeBytes  int64         `json:"size_bytes"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
}
