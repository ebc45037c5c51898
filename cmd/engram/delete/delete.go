// Package deletecmder provides the delete command for removing records
// from the engram memory.
package deletecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramco/engram/cmd/engram/wiring"
	"github.com/engramco/engram/pkg/cliui"
	"github.com/engramco/engram/pkg/config"
	"github.com/engramco/engram/pkg/logger"
)

const deleteLongDesc string = `Delete a record by id.

Removes the record from the engine's index first, then from the
canonical store. Deleting an id that does not exist is not an error;
the command reports that nothing was found.

Examples:
  engram delete fact-001`

const deleteShortDesc string = "Delete a record by id"

func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runDelete(args[0], configDir)
		},
	}

	return cmd
}

func runDelete(id, configDir string) error {
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

	resp, err := rt.Wrapper.Delete(context.Background(), id)
	if err != nil {
		return err
	}

	if !resp.Found {
		fmt.Printf("\n  %s No record with id %s\n\n", cliui.DimStyle.Render("●"), cliui.IDStyle.Render(id))
		return nil
	}

	fmt.Printf("\n  %s Deleted record %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(id))
	return nil
}
