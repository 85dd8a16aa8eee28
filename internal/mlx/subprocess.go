package mlx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// pythonRuntime drives the mlx_lm Python package via subprocesses. One
// process per operation; nothing is kept resident between calls.
type pythonRuntime struct {
	python string
	log    zerolog.Logger
}

// NewPythonRuntime constructs a subprocess-backed runtime. An empty python
// argument triggers interpreter discovery (env override, project venv,
// then python3 on PATH).
func NewPythonRuntime(python string, log zerolog.Logger) Runtime {
	return &pythonRuntime{python: ResolvePython(python), log: log}
}

// ResolvePython picks the Python interpreter to use. Explicit paths win,
// then MLXCONV_PYTHON, then a local venv, then plain python3.
func ResolvePython(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("MLXCONV_PYTHON"); p != "" {
		return p
	}
	for _, venv := range []string{".venv", "venv"} {
		p := filepath.Join(venv, "bin", "python3")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "python3"
}

// envCheckScript verifies the interpreter and the MLX stack in one shot.
// The memory probe is inside its own try so an unsupported host still
// passes the import check.
const envCheckScript = `
import sys
import importlib.util

v = sys.version_info
print("python %d.%d.%d" % (v.major, v.minor, v.micro))
if v < (3, 10):
    print("FAIL: Python 3.10+ required")
    sys.exit(1)

for name in ("mlx", "mlx_lm"):
    if importlib.util.find_spec(name) is None:
        print("FAIL: %s not installed" % name)
        sys.exit(1)

import mlx.core as mx
try:
    print("memory_gb %.3f" % (mx.get_active_memory() / (1024 ** 3)))
except Exception as exc:
    print("memory_unknown %s" % exc)
`

// loadCheckScript loads a converted artifact without generating.
const loadCheckScript = `
import sys
from mlx_lm import load

load(sys.argv[1])
print("load ok")
`

func (r *pythonRuntime) CheckEnv(ctx context.Context) (EnvInfo, error) {
	out, err := exec.CommandContext(ctx, r.python, "-c", envCheckScript).CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		msg := fmt.Sprintf("mlx runtime unavailable (%s): %v", r.python, err)
		if text != "" {
			msg += ": " + text
		}
		return EnvInfo{}, ErrRuntimeUnavailable(msg)
	}

	var info EnvInfo
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "python":
			info.PythonVersion = fields[1]
		case "memory_gb":
			if gb, err := strconv.ParseFloat(fields[1], 64); err == nil {
				info.ActiveMemoryGB = gb
				info.MemoryKnown = true
			}
		case "memory_unknown":
			r.log.Warn().Str("detail", strings.Join(fields[1:], " ")).Msg("could not read accelerator memory")
		}
	}
	return info, nil
}

// convertArgs builds the mlx_lm convert invocation for the given params.
func convertArgs(p ConvertParams) []string {
	args := []string{"-m", "mlx_lm", "convert", "--hf-path", p.HFPath, "--mlx-path", p.OutputPath}
	if p.Quantize {
		args = append(args,
			"-q",
			"--q-bits", strconv.Itoa(p.Bits),
			"--q-group-size", strconv.Itoa(p.GroupSize),
		)
	}
	return args
}

func (r *pythonRuntime) Convert(ctx context.Context, p ConvertParams) error {
	return r.runStreaming(ctx, convertArgs(p)...)
}

// generateArgs builds the mlx_lm generate invocation for the given params.
func generateArgs(p GenerateParams) []string {
	return []string{
		"-m", "mlx_lm", "generate",
		"--model", p.ModelPath,
		"--prompt", p.Prompt,
		"--max-tokens", strconv.Itoa(p.MaxTokens),
		"--temp", strconv.FormatFloat(p.Temperature, 'f', -1, 64),
	}
}

func (r *pythonRuntime) Generate(ctx context.Context, p GenerateParams) (string, error) {
	cmd := exec.CommandContext(ctx, r.python, generateArgs(p)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mlx_lm generate: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *pythonRuntime) Load(ctx context.Context, modelPath string) error {
	return r.runStreaming(ctx, "-c", loadCheckScript, modelPath)
}

// runStreaming runs the interpreter and forwards each output line to the
// logger so long conversions stay observable.
func (r *pythonRuntime) runStreaming(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.python, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.python, err)
	}
	go r.stream(stdout)
	go r.stream(stderr)
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s exited: %w", r.python, err)
	}
	return nil
}

func (r *pythonRuntime) stream(rd io.Reader) {
	s := bufio.NewScanner(rd)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			r.log.Debug().Msg(line)
		}
	}
}
