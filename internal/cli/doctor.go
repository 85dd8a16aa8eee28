package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"mlxconv/internal/logging"
	"mlxconv/internal/mlx"
)

// newDoctorCmd reports environment readiness: OS/arch, Python interpreter
// and the MLX stack. Exits non-zero when the toolchain is unusable.
func newDoctorCmd() *cobra.Command {
	var python string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for MLX conversion readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
				fmt.Fprintln(out, "[ok]  macOS on Apple Silicon")
			} else {
				fmt.Fprintf(out, "[!]   %s/%s - MLX is optimized for Apple Silicon\n", runtime.GOOS, runtime.GOARCH)
			}

			interp := mlx.ResolvePython(python)
			fmt.Fprintf(out, "[ok]  Python interpreter: %s\n", interp)

			log := logging.New("error", "console")
			rt := mlx.NewPythonRuntime(python, log)
			env, err := rt.CheckEnv(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "[x]   %v\n", err)
				fmt.Fprintln(out, "      Install with: pip install mlx-lm")
				return err
			}
			fmt.Fprintf(out, "[ok]  Python %s with mlx and mlx_lm\n", env.PythonVersion)
			if env.MemoryKnown {
				fmt.Fprintf(out, "[ok]  Accelerator memory: %.1f GB\n", env.ActiveMemoryGB)
			} else {
				fmt.Fprintln(out, "[!]   Accelerator memory unknown")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&python, "python", "", "Python interpreter carrying the mlx_lm package")
	return cmd
}
