// Package initcmder provides the init command for initializing a local
// .engram directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/engramco/engram/pkg/cliui"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/dotdir"
)

const dirName = ".engram"

const initLongDesc string = `Initialize a new .engram/ directory in the current working directory.

Creates a local .engram/ directory that takes precedence over the default
~/.engram/ directory, scaffolds the attachments directory, and writes a
config.toml with default values.

This is useful for maintaining separate memory state per project.

Examples:
  engram init
  engram init --engine markdown`

const initShortDesc string = "Initialize a local .engram/ directory"

func NewInitCmd() *cobra.Command {
	var engineName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(engineName)
		},
	}

	cmd.Flags().StringVarP(&engineName, "engine", "e", "", "Engine to configure (default: canonical)")

	return cmd
}

func runInit(engineName string) error {
	if engineName != "" && !config.IsValidEngineName(engineName) {
		return fmt.Errorf("unknown engine %q (available: %v)", engineName, config.ValidEngineNames())
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	fmt.Println()

	err = cliui.Step(os.Stdout, "Creating "+dirName+"/", func() error {
		ddm := dotdir.NewManager()
		if _, err := ddm.Target(dir); err != nil {
			return err
		}
		_, err := ddm.AttachmentsPath(dir)
		return err
	})
	if err != nil {
		return fmt.Errorf("creating %s directory: %w", dirName, err)
	}

	err = cliui.Step(os.Stdout, "Writing config.toml", func() error {
		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return err
		}

		cfg := config.NewDefaultConfig()
		if engineName != "" {
			cfg.Engine.Name = engineName
		}

		return cfger.SaveConfig(cfg)
	})
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("\n  Initialized engram directory: %s\n\n", cliui.ValueStyle.Render(dir))
	return nil
}
