// Package getcmder provides the get command for fetching a single
// record by id.
package getcmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramco/engram/cmd/engram/wiring"
	"github.com/engramco/engram/pkg/cliui"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/store"
)

const getLongDesc string = `Fetch a record by id.

Prints the record's content along with its content type, source, and
creation time. Use --render to display the content as terminal
markdown.

Examples:
  engram get fact-001
  engram get fact-001 --render`

const getShortDesc string = "Fetch a record by id"

func NewGetCmd() *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(args[0], render, configDir)
		},
	}

	cmd.Flags().BoolVar(&render, "render", false, "Render the content as terminal markdown")

	return cmd
}

func runGet(id string, render bool, configDir string) error {
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

	record, err := rt.Wrapper.GetRecord(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("ID:     "), cliui.IDStyle.Render(record.ID))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Type:   "), cliui.ValueStyle.Render(record.ContentType))
	if record.Source != "" {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Source: "), cliui.DimStyle.Render(record.Source))
	}
	if !record.CreatedAt.IsZero() {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Created:"), cliui.DimStyle.Render(record.CreatedAt.Format(time.RFC3339)))
	}
	fmt.Println()

	content := record.Content
	if render && record.ContentType == string(store.ContentTypeText) {
		if rendered, err := cliui.RenderMarkdown(content); err == nil {
			content = rendered
		}
	}

	fmt.Println(content)
	return nil
}
