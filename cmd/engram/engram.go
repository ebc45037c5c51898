// Package engramcmder provides the root engram command.
package engramcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/engramco/engram/cmd/engram/config"
	deletecmder "github.com/engramco/engram/cmd/engram/delete"
	getcmder "github.com/engramco/engram/cmd/engram/get"
	initcmder "github.com/engramco/engram/cmd/engram/init"
	insertcmder "github.com/engramco/engram/cmd/engram/insert"
	listcmder "github.com/engramco/engram/cmd/engram/list"
	searchcmder "github.com/engramco/engram/cmd/engram/search"
	servecmder "github.com/engramco/engram/cmd/engram/serve"
	statuscmder "github.com/engramco/engram/cmd/engram/status"
	versioncmder "github.com/engramco/engram/cmd/version"
)

const engramLongDesc string = `Engram is a pluggable persistent memory for your agents.

Records live in a canonical store; a configurable engine (canonical,
chat-history, markdown, vector, remote, federation) serves queries over
them. The memory is exposed as MCP tools over HTTP or stdio.

Run the server using:
  engram serve             Serve the configured engine
  engram serve --transport stdio

Work with records directly:
  engram insert "fact"     Insert a record
  engram search "query"    Search records
  engram list              List records`

const engramShortDesc string = "Engram - Pluggable Agent Memory"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: engramShortDesc,
		Long:  engramLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .engram/ directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(insertcmder.NewInsertCmd())
	cmd.AddCommand(getcmder.NewGetCmd())
	cmd.AddCommand(listcmder.NewListCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(deletecmder.NewDeleteCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
