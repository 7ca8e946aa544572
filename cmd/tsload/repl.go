package main

import (
	"os"

	"github.com/spf13/cobra"

	"tsload"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive typed-script loop",
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := loadProjectConfig(cwd)
	if err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		cmd.Println("tsload repl, .help for commands")
	}

	r, err := tsload.CreateRepl(cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	return r.Start()
}
