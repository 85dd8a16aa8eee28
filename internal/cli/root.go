// Package cli wires the cobra command tree to the conversion pipeline.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mlxconv/internal/catalog"
	"mlxconv/internal/common/fsutil"
	"mlxconv/internal/config"
	"mlxconv/internal/hub"
	"mlxconv/internal/logging"
	"mlxconv/internal/mlx"
	"mlxconv/internal/pipeline"
	"mlxconv/pkg/types"
)

// defaultOutput is the base output directory when neither flag, env nor
// config file sets one. The run appends a unique suffix to it.
const defaultOutput = "./models/deepseek-r1-8b-mlx"

// NewRootCmd constructs the command tree. The root command itself runs the
// conversion pipeline.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mlxconv",
		Short:         "Convert DeepSeek-R1 models to MLX format for iOS deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return runConvert(cmd, cfg)
		},
	}

	root.Flags().String("model", "", "Model to convert: "+joinIDs())
	root.Flags().String("output", "", "Base output directory (a unique suffix is appended)")
	root.Flags().String("quantization", "", "Quantization level: q4|q8|none")
	root.Flags().Bool("optimize-ios", false, "Run a load-only verification pass after conversion")
	root.Flags().String("python", "", "Python interpreter carrying the mlx_lm package")
	root.Flags().String("metrics-file", "", "Write a Prometheus textfile snapshot of the run")
	root.Flags().StringVar(&configPath, "config", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	root.PersistentFlags().String("log-format", "", "Log format: console|json")

	root.AddCommand(newModelsCmd(), newDoctorCmd(), newCompletionCmd(root))
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// resolveConfig applies the precedence chain: defaults < config file < env
// < flags.
func resolveConfig(cmd *cobra.Command, configPath string) (config.Config, error) {
	cfg := config.Config{
		Model:        catalog.DefaultID,
		Output:       defaultOutput,
		Quantization: string(types.QuantQ4),
		LogLevel:     "info",
		LogFormat:    "console",
	}
	if configPath != "" {
		fileCfg, err := config.Load(configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = config.Overlay(cfg, fileCfg)
	}
	cfg = config.Overlay(cfg, config.FromEnv())
	cfg = config.Overlay(cfg, flagOverlay(cmd))
	return cfg, nil
}

// flagOverlay collects only the flags the user actually set, so unset
// flags never mask env or file values.
func flagOverlay(cmd *cobra.Command) config.Config {
	var over config.Config
	f := cmd.Flags()
	if f.Changed("model") {
		over.Model, _ = f.GetString("model")
	}
	if f.Changed("output") {
		over.Output, _ = f.GetString("output")
	}
	if f.Changed("quantization") {
		over.Quantization, _ = f.GetString("quantization")
	}
	if f.Changed("optimize-ios") {
		over.OptimizeIOS, _ = f.GetBool("optimize-ios")
	}
	if f.Changed("python") {
		over.Python, _ = f.GetString("python")
	}
	if f.Changed("metrics-file") {
		over.MetricsFile, _ = f.GetString("metrics-file")
	}
	if f.Changed("log-level") {
		over.LogLevel, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		over.LogFormat, _ = f.GetString("log-format")
	}
	return over
}

func runConvert(cmd *cobra.Command, cfg config.Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	output, err := fsutil.ExpandHome(cfg.Output)
	if err != nil {
		return err
	}

	rt := mlx.NewPythonRuntime(cfg.Python, log)
	p := pipeline.New(rt, log, pipeline.WithHub(hub.NewClient()))

	req := types.ConversionRequest{
		ModelID:      cfg.Model,
		OutputDir:    output,
		Quantization: types.Quantization(cfg.Quantization),
		OptimizeIOS:  cfg.OptimizeIOS,
	}

	res, runErr := p.Run(cmd.Context(), req)

	if cfg.MetricsFile != "" {
		if err := p.WriteMetrics(cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("metrics snapshot failed")
		}
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("conversion failed")
		return runErr
	}

	log.Info().
		Str("path", res.OutputPath).
		Msg("conversion completed successfully, model ready for iOS deployment")
	return nil
}

func joinIDs() string {
	ids := catalog.IDs()
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += "|"
		}
		out += id
	}
	return out
}
