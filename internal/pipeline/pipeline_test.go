package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mlxconv/internal/catalog"
	"mlxconv/internal/manifest"
	"mlxconv/internal/mlx"
	"mlxconv/pkg/types"
)

// fakeRuntime stands in for the Python toolchain. Convert materializes a
// minimal MLX layout the way mlx_lm would, unless told to fail.
type fakeRuntime struct {
	env         mlx.EnvInfo
	envErr      error
	convertErr  error
	generateErr error
	loadErr     error

	convertCalls  []mlx.ConvertParams
	generateCalls []mlx.GenerateParams
	loadCalls     []string
}

func (f *fakeRuntime) CheckEnv(ctx context.Context) (mlx.EnvInfo, error) {
	return f.env, f.envErr
}

func (f *fakeRuntime) Convert(ctx context.Context, p mlx.ConvertParams) error {
	f.convertCalls = append(f.convertCalls, p)
	if f.convertErr != nil {
		return f.convertErr
	}
	if err := os.MkdirAll(p.OutputPath, 0o755); err != nil {
		return err
	}
	for _, name := range []string{"config.json", "model.safetensors"} {
		if err := os.WriteFile(filepath.Join(p.OutputPath, name), []byte("x"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRuntime) Generate(ctx context.Context, p mlx.GenerateParams) (string, error) {
	f.generateCalls = append(f.generateCalls, p)
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return "Category: food", nil
}

func (f *fakeRuntime) Load(ctx context.Context, modelPath string) error {
	f.loadCalls = append(f.loadCalls, modelPath)
	return f.loadErr
}

func newTestPipeline(rt mlx.Runtime) *Pipeline {
	return New(rt, zerolog.Nop(), WithClock(func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}))
}

func request(t *testing.T, quant types.Quantization) types.ConversionRequest {
	t.Helper()
	return types.ConversionRequest{
		ModelID:      "deepseek-r1-8b",
		OutputDir:    filepath.Join(t.TempDir(), "deepseek-r1-8b-mlx"),
		Quantization: quant,
	}
}

func TestRunSuccess(t *testing.T) {
	rt := &fakeRuntime{env: mlx.EnvInfo{PythonVersion: "3.12.1", ActiveMemoryGB: 16, MemoryKnown: true}}
	p := newTestPipeline(rt)
	req := request(t, types.QuantQ4)

	res, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success: %+v", res)
	}
	if res.OutputPath == req.OutputDir {
		t.Fatalf("output path must differ from requested base")
	}
	if !strings.HasPrefix(filepath.Base(res.OutputPath), filepath.Base(req.OutputDir)+"_") {
		t.Fatalf("output %q does not extend base name", res.OutputPath)
	}

	if len(rt.convertCalls) != 1 {
		t.Fatalf("expected 1 convert call, got %d", len(rt.convertCalls))
	}
	c := rt.convertCalls[0]
	if !c.Quantize || c.Bits != 4 || c.GroupSize != 64 {
		t.Fatalf("unexpected convert params: %+v", c)
	}
	if c.HFPath != "deepseek-ai/DeepSeek-R1-Distill-Llama-8B" {
		t.Fatalf("unexpected hf path: %q", c.HFPath)
	}

	if len(rt.generateCalls) != 1 {
		t.Fatalf("expected 1 smoke generation, got %d", len(rt.generateCalls))
	}
	g := rt.generateCalls[0]
	if g.MaxTokens != 200 || g.Temperature != 0.3 || g.ModelPath != res.OutputPath {
		t.Fatalf("unexpected generate params: %+v", g)
	}

	if _, err := os.Stat(filepath.Join(res.OutputPath, manifest.FileName)); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
}

func TestRunUnknownModelNoWrites(t *testing.T) {
	rt := &fakeRuntime{}
	p := newTestPipeline(rt)
	parent := t.TempDir()
	req := types.ConversionRequest{
		ModelID:      "not-a-real-model",
		OutputDir:    filepath.Join(parent, "out"),
		Quantization: types.QuantQ4,
	}

	_, err := p.Run(context.Background(), req)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !catalog.IsUnknownModel(err) {
		t.Fatalf("expected unknown-model error, got %v", err)
	}
	for _, id := range catalog.IDs() {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("error %q does not list %q", err, id)
		}
	}
	entries, rdErr := os.ReadDir(parent)
	if rdErr != nil {
		t.Fatalf("read dir: %v", rdErr)
	}
	if len(entries) != 0 {
		t.Fatalf("unexpected filesystem writes: %v", entries)
	}
	if len(rt.convertCalls) != 0 {
		t.Fatalf("converter must not run for unknown models")
	}
}

func TestRunEnvCheckFatal(t *testing.T) {
	rt := &fakeRuntime{envErr: mlx.ErrRuntimeUnavailable("mlx not installed")}
	p := newTestPipeline(rt)

	_, err := p.Run(context.Background(), request(t, types.QuantQ4))
	if err == nil || !mlx.IsRuntimeUnavailable(err) {
		t.Fatalf("expected runtime-unavailable error, got %v", err)
	}
	if len(rt.convertCalls) != 0 {
		t.Fatalf("converter must not run without the toolchain")
	}
}

func TestRunConversionFailure(t *testing.T) {
	rt := &fakeRuntime{convertErr: errors.New("download interrupted")}
	p := newTestPipeline(rt)

	res, err := p.Run(context.Background(), request(t, types.QuantQ4))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "conversion failed") {
		t.Fatalf("error not attributed to conversion: %v", err)
	}
	if res.Success {
		t.Fatalf("result must not report success")
	}
	if len(rt.generateCalls) != 0 {
		t.Fatalf("smoke test must not run after a failed conversion")
	}
}

func TestRunInvalidQuantization(t *testing.T) {
	rt := &fakeRuntime{}
	p := newTestPipeline(rt)
	req := request(t, types.Quantization("q2"))

	if _, err := p.Run(context.Background(), req); err == nil {
		t.Fatalf("expected error for unsupported quantization")
	}
	if len(rt.convertCalls) != 0 {
		t.Fatalf("converter must not run")
	}
}

func TestSmokeTestFailureAbsorbed(t *testing.T) {
	rt := &fakeRuntime{generateErr: errors.New("metal kernel panic")}
	p := newTestPipeline(rt)

	res, err := p.Run(context.Background(), request(t, types.QuantQ8))
	if err != nil {
		t.Fatalf("smoke failure must not fail the run: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success despite smoke failure")
	}
}

func TestOptimizeIOSLoadOnly(t *testing.T) {
	rt := &fakeRuntime{loadErr: errors.New("mmap failed")}
	p := newTestPipeline(rt)
	req := request(t, types.QuantQ4)
	req.OptimizeIOS = true

	res, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("ios optimize failure must not fail the run: %v", err)
	}
	if len(rt.loadCalls) != 1 || rt.loadCalls[0] != res.OutputPath {
		t.Fatalf("expected one load of %q, got %v", res.OutputPath, rt.loadCalls)
	}
}

func TestConvertParamsMapping(t *testing.T) {
	cases := []struct {
		quant    types.Quantization
		quantize bool
		bits     int
	}{
		{types.QuantQ4, true, 4},
		{types.QuantQ8, true, 8},
		{types.QuantNone, false, 0},
	}
	for _, c := range cases {
		p := convertParams("org/repo", "/out", c.quant)
		if p.Quantize != c.quantize || p.Bits != c.bits {
			t.Fatalf("quant %s: got %+v", c.quant, p)
		}
		if c.quantize && p.GroupSize != 64 {
			t.Fatalf("quant %s: group size %d", c.quant, p.GroupSize)
		}
	}
}

func TestWriteMetrics(t *testing.T) {
	rt := &fakeRuntime{}
	p := newTestPipeline(rt)
	if _, err := p.Run(context.Background(), request(t, types.QuantQ4)); err != nil {
		t.Fatalf("run: %v", err)
	}

	path := filepath.Join(t.TempDir(), "run.prom")
	if err := p.WriteMetrics(path); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(b)
	for _, metric := range []string{"mlxconv_conversions_total", "mlxconv_conversion_duration_seconds", "mlxconv_artifact_bytes"} {
		if !strings.Contains(out, metric) {
			t.Fatalf("snapshot missing %s:\n%s", metric, out)
		}
	}
	if !strings.Contains(out, `result="success"`) {
		t.Fatalf("success counter missing:\n%s", out)
	}
}
