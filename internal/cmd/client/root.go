package client

import (
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewRoot constructs a root Cobra command holding every client command.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "spool",
		Short: "spool client commands",
	}
	AddCommands(root, baseURL)
	return root
}

// AddCommands registers the client commands on parent.
func AddCommands(parent *cobra.Command, baseURL BaseURLFunc) {
	parent.AddCommand(
		newGroupsCommand(baseURL),
		newCountCommand(baseURL),
		newPutCommand(baseURL),
		newFlushCommand(baseURL),
		newPurgeCommand(baseURL),
		newClearCommand(baseURL),
		newHealthCommand(),
	)
}
