package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tsload/internal/service"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the tsload artifact cache",
	Long:  "Remove every compiled artifact from the persistent disk cache.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, _ []string) error {
	dc, err := service.OpenDiskCache("tsload")
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := dc.DropAll(); err != nil {
		return fmt.Errorf("failed to drop cache: %w", err)
	}
	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		cmd.Println("cache removed")
	}
	return nil
}
