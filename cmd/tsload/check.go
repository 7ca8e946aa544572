package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"tsload"
	"tsload/internal/checkrun"
	"tsload/internal/diag"
	"tsload/internal/service"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Type-check every recognized file under a directory",
	Long:  "Walk the directory, compile every file the configuration recognizes and report diagnostics. Nothing is executed.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Int("workers", runtime.NumCPU(), "number of parallel workers")
	checkCmd.Flags().String("ui", "auto", "progress display (auto|on|off)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	rootDir := "."
	if len(args) > 0 && args[0] != "" {
		rootDir = args[0]
	}
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	cfg, err := loadProjectConfig(rootDir)
	if err != nil {
		return err
	}
	handle, err := tsload.Create(cfg)
	if err != nil {
		return err
	}

	files, err := checkrun.CollectFiles(rootDir, handle.Instance())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		cmd.Println("no files to check")
		return nil
	}

	workers, _ := cmd.Flags().GetInt("workers")
	uiFlag, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	// Каждый воркер получает собственный сервис; общий только дисковый кэш.
	var disk *service.DiskCache
	if cfg.DiskCache {
		if dc, dcErr := service.OpenDiskCache("tsload"); dcErr == nil {
			disk = dc
		}
	}
	opts := handle.Instance().Service().Options()
	factory := func() *service.Service {
		svc := service.New(source.NewFileSet(), sourcemap.NewIndex(), opts)
		if disk != nil {
			svc.SetDiskCache(disk)
		}
		return svc
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	display := displayNames(rootDir, files)
	var results []checkrun.FileResult
	if shouldUseTUI(mode) {
		results, err = runCheckWithUI(ctx, "checking "+rootDir, display, files, factory, workers)
		if err != nil {
			return err
		}
	} else {
		results = checkrun.Run(ctx, files, factory, workers, nil)
	}

	return reportCheck(cmd, display, results)
}

// displayNames shortens absolute paths relative to the checked root.
func displayNames(rootDir string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if rel, err := filepath.Rel(rootDir, f); err == nil {
			out[i] = filepath.ToSlash(rel)
		} else {
			out[i] = f
		}
	}
	return out
}

func reportCheck(cmd *cobra.Command, display []string, results []checkrun.FileResult) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	failed := 0
	for i, res := range results {
		if res.Err == nil {
			continue
		}
		failed++
		var ce *service.CompileError
		if errors.As(res.Err, &ce) {
			fmt.Fprint(os.Stderr, ce.Report(diag.ReportOptions{Color: useColor(cmd)}))
		} else {
			fmt.Fprintf(os.Stderr, "%s: %v\n", display[i], res.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	if !quiet {
		cmd.Printf("%d files ok\n", len(results))
	}
	return nil
}
