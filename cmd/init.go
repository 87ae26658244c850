// cmd/init.go
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/NahomAnteneh/vec/core"
	"github.com/NahomAnteneh/vec/internal/repository"
)

var initBare bool

// newInitHandler closes over the --bare flag's address so it reads whatever
// cobra parsed into it at RunE time, not whatever it held when the command
// was registered.
func newInitHandler(bare *bool) func(args []string) error {
	return func(args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		absDir, err := filepath.Abs(dir)
		if err != nil {
			return core.FSError("failed to get absolute path", err)
		}

		repo := core.NewRepository(absDir)

		var initErr error
		if *bare {
			initErr = repository.CreateBareRepo(repo)
		} else {
			initErr = repository.CreateRepo(repo)
		}
		if initErr != nil {
			kind := "repository"
			if *bare {
				kind = "bare repository"
			}
			return core.RepositoryError(fmt.Sprintf("failed to initialize %s in '%s'", kind, absDir), initErr)
		}
		return nil
	}
}

func init() {
	initCmd := NewInitCommand(
		"init [directory]",
		"Initialize a new, empty Vec repository",
		newInitHandler(&initBare),
	)

	initCmd.Flags().BoolVar(&initBare, "bare", false, "Initialize a bare repository")
	rootCmd.AddCommand(initCmd)
}
