package cmd

import (
	"fmt"

	"github.com/NahomAnteneh/vec/core"
	"github.com/spf13/cobra"
)

// HandlerFunc is the signature every repository-bound command handler
// implements: it receives an already-resolved Repository plus the
// positional arguments cobra parsed out.
type HandlerFunc func(repo *core.Repository, args []string) error

// NewRepoCommand builds a cobra.Command that resolves the current
// repository via core.FindRepository before calling run, so individual
// commands never repeat that lookup.
func NewRepoCommand(use, short string, run HandlerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := core.FindRepository()
			if err != nil {
				return fmt.Errorf("failed to find repository: %w", err)
			}
			return run(repo, args)
		},
	}
}

// NewInitCommand builds a cobra.Command for operations, like init, that
// must run before a repository necessarily exists and so cannot go
// through NewRepoCommand's automatic lookup.
func NewInitCommand(use, short string, run func(args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}
