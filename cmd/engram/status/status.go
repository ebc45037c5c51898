// Package statuscmder provides the status command for displaying the
// configured engine and the state of the canonical store.
package statuscmder

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramco/engram/cmd/engram/wiring"
	"github.com/engramco/engram/pkg/cliui"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/logger"
)

const statusLongDesc string = `Show the configured engram engine and store state.

Loads the configuration from the .engram/ directory, wires the engine,
and reports its name, effective capabilities, record count, and any
engine-specific metadata.

Examples:
  engram status`

const statusShortDesc string = "Show engine and store state"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(configDir)
		},
	}

	return cmd
}

func runStatus(configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rt, err := wiring.Build(cfg, configDir, logger.Nop())
	if err != nil {
		return fmt.Errorf("wiring engram: %w", err)
	}
	defer func() { _ = rt.Close() }()

	info, err := rt.Wrapper.Info(context.Background())
	if err != nil {
		return fmt.Errorf("fetching engine info: %w", err)
	}

	fmt.Println()
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Engine:      "), cliui.ValueStyle.Render(info.Engine))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Records:     "), cliui.ValueStyle.Render(strconv.Itoa(info.Records)))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Capabilities:"),
		cliui.DimStyle.Render(strings.Join(rt.Wrapper.Capabilities().Strings(), ", ")))

	for k, v := range info.Metadata {
		fmt.Printf("  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%-13s", k+":")),
			cliui.DimStyle.Render(v),
		)
	}

	if info.Instructions != "" {
		fmt.Printf("\n  %s\n", cliui.DimStyle.Render(info.Instructions))
	}

	fmt.Println()
	return nil
}
