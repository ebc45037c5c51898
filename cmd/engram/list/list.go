// Package listcmder provides the list command for paging through
// stored records.
package listcmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramco/engram/cmd/engram/wiring"
	"github.com/engramco/engram/pkg/cliui"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/logger"
)

const listLongDesc string = `List stored records, newest first.

Shows each record's id, content type, creation time, and a content
preview. Use --limit and --offset to page through large memories.

Examples:
  engram list
  engram list --limit 20
  engram list --limit 20 --offset 40`

const listShortDesc string = "List stored records"

func NewListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(limit, offset, configDir)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum records to return (default 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")

	return cmd
}

func runList(limit, offset int, configDir string) error {
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

	resp, err := rt.Wrapper.ListRecords(context.Background(), limit, offset)
	if err != nil {
		return err
	}

	if len(resp.Records) == 0 {
		fmt.Println("No records stored.")
		return nil
	}

	fmt.Printf("\n  %s\n\n",
		cliui.HeaderStyle.Render(fmt.Sprintf("%d of %d records", len(resp.Records), resp.Total)))

	for _, r := range resp.Records {
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Format(time.RFC3339)
		}

		fmt.Printf("  %s %s %s\n",
			cliui.IDStyle.Render(r.ID),
			cliui.DimStyle.Render("["+r.ContentType+"]"),
			cliui.DimStyle.Render(created),
		)
		fmt.Printf("    %s\n", cliui.PreviewStyle.Render(r.Preview))
	}

	fmt.Println()
	return nil
}
