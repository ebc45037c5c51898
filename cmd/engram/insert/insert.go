// Package insertcmder provides the insert command for storing records
// and files in the engram memory.
package insertcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramco/engram/cmd/engram/wiring"
	"github.com/engramco/engram/pkg/cliui"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/logger"
)

type insertCommander struct {
	content string
	file    string
	id      string
	source  string

	configDir string
	debug     bool
}

const insertLongDesc string = `Insert a record into the engram memory.

Writes the record to the canonical store and forwards it to the
configured engine's index. Use --file to store a local file as a
content-addressed attachment instead of passing text content.

Examples:
  engram insert "the deploy runbook lives in ops/runbooks"
  engram insert "API key rotation is quarterly" --source team-wiki
  engram insert --file ./architecture.png
  engram insert "pinned fact" --id fact-001`

const insertShortDesc string = "Insert a record"

func NewInsertCmd() *cobra.Command {
	cmder := &insertCommander{}

	cmd := &cobra.Command{
		Use:   "insert [content]",
		Short: insertShortDesc,
		Long:  insertLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cmder.content = args[0]
			}

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Path to a local file to store as an attachment")
	cmd.Flags().StringVar(&cmder.id, "id", "", "Record id (default: generated UUID)")
	cmd.Flags().StringVarP(&cmder.source, "source", "s", "", "Source label for the record")

	return cmd
}

func (c *insertCommander) run() error {
	if c.content == "" && c.file == "" {
		return fmt.Errorf("either content or --file is required")
	}
	if c.content != "" && c.file != "" {
		return fmt.Errorf("content and --file are mutually exclusive")
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithPretty(true), logger.WithDebug(true))
	}

	rt, err := wiring.Build(cfg, c.configDir, log)
	if err != nil {
		return fmt.Errorf("wiring engram: %w", err)
	}
	defer func() { _ = rt.Close() }()

	ctx := context.Background()

	if c.file != "" {
		resp, err := rt.Wrapper.InsertFile(ctx, c.file, nil, c.id)
		if err != nil {
			return err
		}

		fmt.Printf("\n  %s Stored file as %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(resp.ID))
		return nil
	}

	resp, err := rt.Wrapper.Insert(ctx, c.content, c.id, c.source)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s Inserted record %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(resp.ID))
	return nil
}
