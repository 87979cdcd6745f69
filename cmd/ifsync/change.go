package main

import (
	"github.com/spf13/cobra"

	"ifsync/internal/application/lifecycle"
)

func newChangeCmds(opts *globalOptions) []*cobra.Command {
	change := func(use, short string, op func(m *lifecycle.Manager, cmd *cobra.Command) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withManager(func(m *lifecycle.Manager) error {
					return op(m, cmd)
				})
			},
		}
	}

	return []*cobra.Command{
		change("change-begin", "Snapshot the native configuration files", func(m *lifecycle.Manager, cmd *cobra.Command) error {
			return m.ChangeBegin(cmd.Context(), 0)
		}),
		change("change-commit", "Keep the current files and drop the snapshot", func(m *lifecycle.Manager, cmd *cobra.Command) error {
			return m.ChangeCommit(cmd.Context(), 0)
		}),
		change("change-rollback", "Restore the files saved by change-begin", func(m *lifecycle.Manager, cmd *cobra.Command) error {
			return m.ChangeRollback(cmd.Context(), 0)
		}),
	}
}
