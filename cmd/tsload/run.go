package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"tsload"
	"tsload/internal/diag"
	"tsload/internal/host"
	"tsload/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile and execute a typed script file",
	Long:  "Compile the file (and everything it loads) on demand and execute it on the embedded host.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Bool("transpile-only", false, "skip type checking")
	runCmd.Flags().StringSlice("ignore-diagnostics", nil, "diagnostic codes to ignore (e.g. 2345)")
}

func runRun(cmd *cobra.Command, args []string) error {
	target, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadProjectConfig(filepath.Dir(target))
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetBool("transpile-only"); v {
		cfg.TranspileOnly = true
	}
	if codes, _ := cmd.Flags().GetStringSlice("ignore-diagnostics"); len(codes) > 0 {
		for _, c := range codes {
			cfg.IgnoreDiagnostics = append(cfg.IgnoreDiagnostics, parseCodeList(c)...)
		}
	}

	handle, err := tsload.Register(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := handle.RunFile(ctx, target); err != nil {
		printRunError(cmd, err)
		return fmt.Errorf("run failed")
	}
	return nil
}

// printRunError renders the two interesting error families: a compile
// rejection gets the diagnostic report, a runtime throw gets its remapped
// stack. Everything else prints as-is.
func printRunError(cmd *cobra.Command, err error) {
	var ce *service.CompileError
	if errors.As(err, &ce) {
		fmt.Fprint(os.Stderr, ce.Report(diag.ReportOptions{
			Color:   useColor(cmd),
			Context: true,
		}))
		return
	}
	var re *host.RuntimeError
	if errors.As(err, &re) {
		fmt.Fprintln(os.Stderr, re.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
}
