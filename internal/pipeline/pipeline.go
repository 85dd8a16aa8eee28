// Package pipeline runs the four-stage conversion flow: environment check,
// conversion, smoke test, manifest. Control is strictly sequential; the
// smoke test and the iOS pass absorb their own failures.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mlxconv/internal/catalog"
	"mlxconv/internal/common/fsutil"
	"mlxconv/internal/hub"
	"mlxconv/internal/manifest"
	"mlxconv/internal/mlx"
	"mlxconv/pkg/types"
)

// memoryWarnGB is the accelerator memory floor below which we advise a
// smaller model.
const memoryWarnGB = 8

// smokePrompt exercises the converted model with the content-analysis task
// the artifact is shipped for.
const smokePrompt = `
Analyze this content and provide structured information:

"Just discovered an amazing coffee shop downtown. Great atmosphere, excellent wifi, perfect for working. The barista recommended their signature blend - definitely coming back!"

Provide:
- Category:
- Tags:
- Sentiment:
`

const (
	smokeMaxTokens   = 200
	smokeTemperature = 0.3
)

// Pipeline wires the runtime adapter, the optional hub preflight and the
// run metrics together.
type Pipeline struct {
	rt      mlx.Runtime
	hub     *hub.Client
	log     zerolog.Logger
	metrics *runMetrics
	now     func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithHub enables the best-effort Hugging Face preflight.
func WithHub(c *hub.Client) Option {
	return func(p *Pipeline) { p.hub = c }
}

// WithClock overrides the manifest timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a Pipeline around the given runtime.
func New(rt mlx.Runtime, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		rt:      rt,
		log:     log,
		metrics: newRunMetrics(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes one conversion. The returned error is non-nil exactly when
// the process should exit non-zero: missing runtime, unknown model,
// conversion or manifest failure. Smoke-test and iOS-optimize problems are
// logged and swallowed.
func (p *Pipeline) Run(ctx context.Context, req types.ConversionRequest) (types.ConversionResult, error) {
	var result types.ConversionResult

	// Stage 1: environment check. Fatal when the toolchain is missing.
	env, err := p.rt.CheckEnv(ctx)
	if err != nil {
		return result, err
	}
	ev := p.log.Info().Str("python", env.PythonVersion)
	if env.MemoryKnown {
		ev = ev.Float64("accelerator_memory_gb", env.ActiveMemoryGB)
	}
	ev.Msg("mlx environment ready")
	if env.MemoryKnown && env.ActiveMemoryGB < memoryWarnGB {
		p.log.Warn().
			Float64("accelerator_memory_gb", env.ActiveMemoryGB).
			Msgf("less than %d GB accelerator memory available, consider a smaller model", memoryWarnGB)
	}

	// Stage 2: catalog resolution. Must fail before any filesystem write.
	entry, err := catalog.Lookup(req.ModelID)
	if err != nil {
		p.metrics.conversions.WithLabelValues("failure").Inc()
		return result, err
	}
	if !req.Quantization.Valid() {
		p.metrics.conversions.WithLabelValues("failure").Inc()
		return result, fmt.Errorf("unsupported quantization: %s", req.Quantization)
	}
	p.log.Info().
		Str("model", entry.ID).
		Str("source", entry.HFPath).
		Str("quantization", string(req.Quantization)).
		Msg(entry.Description)

	// Best-effort preflight; conversion proceeds no matter what.
	if p.hub != nil {
		if info, err := p.hub.RepoInfo(ctx, entry.HFPath); err != nil {
			p.log.Warn().Err(err).Str("repo", entry.HFPath).Msg("hub preflight failed")
		} else {
			p.log.Info().
				Int("files", info.Files).
				Int64("download_bytes", info.WeightBytes).
				Msg("hub preflight ok")
		}
	}

	outputPath, err := fsutil.UniqueDir(req.OutputDir)
	if err != nil {
		p.metrics.conversions.WithLabelValues("failure").Inc()
		return result, err
	}
	p.log.Info().Str("output", outputPath).Msg("allocated output path")

	// Stage 3: conversion. Partial output on failure is left in place.
	start := p.now()
	if err := p.rt.Convert(ctx, convertParams(entry.HFPath, outputPath, req.Quantization)); err != nil {
		p.metrics.conversions.WithLabelValues("failure").Inc()
		return result, fmt.Errorf("conversion failed: %w", err)
	}
	duration := p.now().Sub(start)
	p.metrics.duration.Set(duration.Seconds())

	if err := verifyArtifact(outputPath); err != nil {
		p.metrics.conversions.WithLabelValues("failure").Inc()
		return result, fmt.Errorf("converted artifact incomplete: %w", err)
	}
	size, err := fsutil.DirSize(outputPath)
	if err != nil {
		p.log.Warn().Err(err).Msg("could not measure artifact size")
	} else {
		p.metrics.artifactBytes.Set(float64(size))
	}
	p.log.Info().Dur("took", duration).Int64("bytes", size).Msg("model conversion completed")

	// Stage 4: smoke test, diagnostic only.
	p.smokeTest(ctx, outputPath)

	// Stage 5: manifest. A write failure fails the run.
	m := manifest.New(outputPath, entry.ID, req.Quantization, entry.Description, p.now())
	infoPath, err := manifest.Write(outputPath, m)
	if err != nil {
		p.metrics.conversions.WithLabelValues("failure").Inc()
		return result, fmt.Errorf("write manifest: %w", err)
	}
	p.log.Info().Str("path", infoPath).Msg("model info saved")

	if req.OptimizeIOS {
		p.optimizeForIOS(ctx, outputPath)
	}

	p.metrics.conversions.WithLabelValues("success").Inc()
	result = types.ConversionResult{
		OutputPath: outputPath,
		SizeBytes:  size,
		Duration:   duration,
		Success:    true,
	}
	return result, nil
}

// convertParams maps a quantization level to the converter configuration.
func convertParams(hfPath, outputPath string, q types.Quantization) mlx.ConvertParams {
	p := mlx.ConvertParams{HFPath: hfPath, OutputPath: outputPath}
	switch q {
	case types.QuantQ4:
		p.Quantize, p.Bits, p.GroupSize = true, 4, 64
	case types.QuantQ8:
		p.Quantize, p.Bits, p.GroupSize = true, 8, 64
	}
	return p
}

// smokeTest runs one fixed generation against the artifact. Never fatal.
func (p *Pipeline) smokeTest(ctx context.Context, modelPath string) {
	p.log.Info().Msg("testing converted model")
	response, err := p.rt.Generate(ctx, mlx.GenerateParams{
		ModelPath:   modelPath,
		Prompt:      smokePrompt,
		MaxTokens:   smokeMaxTokens,
		Temperature: smokeTemperature,
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("model test failed")
		return
	}
	p.log.Info().Str("response", response).Msg("model test successful")
}

// optimizeForIOS is a load-only verification pass. There is no actual
// transformation; the conversion already emits the deployable layout.
func (p *Pipeline) optimizeForIOS(ctx context.Context, modelPath string) {
	p.log.Info().Msg("applying iOS optimizations")
	if err := p.rt.Load(ctx, modelPath); err != nil {
		p.log.Warn().Err(err).Msg("iOS optimization failed")
		return
	}
	p.log.Info().Msg("iOS optimizations applied")
}

// WriteMetrics persists a Prometheus textfile snapshot of this run.
func (p *Pipeline) WriteMetrics(path string) error {
	return p.metrics.writeTextfile(path)
}
