// Package searchcmder provides the search command for querying the
// engram memory through the configured engine.
package searchcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramco/engram/cmd/engram/wiring"
	"github.com/engramco/engram/pkg/cliui"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/utils"
)

type searchCommander struct {
	query string
	topK  int
	quiet bool

	configDir string
}

const searchLongDesc string = `Search the engram memory.

Runs the query through the configured engine: full-text over the
canonical store for the canonical and markdown engines, substring match
for chat-history, semantic similarity for vector, and fan-out for
federation.

Use --quiet to output only record ids, one per line, for piping into
other commands.

Examples:
  engram search "deploy runbook"
  engram search "error handling patterns" --top 10
  engram search "rotation schedule" --quiet | xargs -n1 engram get`

const searchShortDesc string = "Search the engram memory"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run()
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only record ids, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run() error {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rt, err := wiring.Build(cfg, c.configDir, logger.Nop())
	if err != nil {
		return fmt.Errorf("wiring engram: %w", err)
	}
	defer func() { _ = rt.Close() }()

	resp, err := rt.Wrapper.Query(context.Background(), c.query, c.topK)
	if err != nil {
		return err
	}

	if len(resp.Results) == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range resp.Results {
			fmt.Println(result.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search results for:"),
		cliui.IDStyle.Render(fmt.Sprintf("%q", resp.Query)),
	)

	for i, result := range resp.Results {
		score := ""
		if result.Score > 0 {
			score = fmt.Sprintf("score: %.4f", result.Score)
		}

		preview := utils.Truncate(strings.ReplaceAll(result.Content, "\n", " "), 80)

		fmt.Printf("  %s  %s  %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.IDStyle.Render(result.ID),
			cliui.ScoreStyle.Render(score),
		)
		fmt.Printf("  %s\n", cliui.PreviewStyle.Render(preview))
		if result.Source != "" {
			fmt.Printf("  %s\n", cliui.DimStyle.Render("source: "+result.Source))
		}
		fmt.Println()
	}

	return nil
}
