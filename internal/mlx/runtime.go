package mlx

import "context"

// Runtime abstracts the MLX toolchain driven by the pipeline. The real
// implementation shells out to the Python mlx_lm package; tests substitute
// a fake.
type Runtime interface {
	// CheckEnv verifies the toolchain is usable and reports accelerator
	// memory as a best-effort diagnostic. A returned error satisfies
	// IsRuntimeUnavailable.
	CheckEnv(ctx context.Context) (EnvInfo, error)
	// Convert downloads and converts a model into MLX format. The output
	// directory is created by the toolchain, not by the caller.
	Convert(ctx context.Context, p ConvertParams) error
	// Generate loads a converted artifact and produces one completion.
	Generate(ctx context.Context, p GenerateParams) (string, error)
	// Load performs a load-only pass of a converted artifact without
	// generating anything.
	Load(ctx context.Context, modelPath string) error
}

// EnvInfo describes the detected MLX environment.
type EnvInfo struct {
	PythonVersion string
	// ActiveMemoryGB is only meaningful when MemoryKnown is true; the
	// query is best effort and may fail on unsupported hosts.
	ActiveMemoryGB float64
	MemoryKnown    bool
}

// ConvertParams mirrors the mlx_lm convert surface the pipeline uses.
type ConvertParams struct {
	HFPath     string
	OutputPath string
	Quantize   bool
	Bits       int
	GroupSize  int
}

// GenerateParams mirrors the mlx_lm generate surface the pipeline uses.
type GenerateParams struct {
	ModelPath   string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// runtimeUnavailableError signals that the MLX toolchain is missing or
// broken, so the pipeline can exit before doing any work.
type runtimeUnavailableError struct{ msg string }

func (e runtimeUnavailableError) Error() string { return e.msg }

// ErrRuntimeUnavailable constructs a runtimeUnavailableError.
func ErrRuntimeUnavailable(msg string) error { return runtimeUnavailableError{msg: msg} }

// IsRuntimeUnavailable reports whether err indicates a missing/failed MLX
// toolchain.
func IsRuntimeUnavailable(err error) bool {
	_, ok := err.(runtimeUnavailableError)
	return ok
}
