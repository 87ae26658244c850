package cmd

import (
	"fmt"

	"github.com/NahomAnteneh/vec/internal/maintenance"
	"github.com/NahomAnteneh/vec/utils"
	"github.com/spf13/cobra"
)

// gcCmd represents the gc command
var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Clean up unnecessary files and optimize the repository",
	Long: `Garbage collection cleans up unnecessary files and optimizes the local repository.

This command performs several housekeeping tasks:
1. With --prune, removes every unreferenced loose object
2. With --auto-pack, packs unreferenced loose objects into a packfile
3. When more than one packfile exists, removes packfiles older than the age
   threshold, always keeping the newest one
4. With the --dry-run option, shows what would be done without making changes

Example:
  vec gc                   # Run garbage collection with default settings
  vec gc -p                # Run garbage collection and remove unreferenced loose objects
  vec gc -a                # Automatically pack loose objects into packfiles
  vec gc -v                # Run with verbose output
  vec gc -n                # Dry run (show what would happen without making changes)
  vec gc -a -p -v          # Full cleanup with verbose output
`,
	RunE: runGC,
}

var (
	gcPrune    bool
	gcAutoPack bool
	gcDryRun   bool
	gcVerbose  bool
)

func init() {
	rootCmd.AddCommand(gcCmd)

	// Add flags
	gcCmd.Flags().BoolVarP(&gcPrune, "prune", "p", false, "Remove unreferenced loose objects")
	gcCmd.Flags().BoolVarP(&gcAutoPack, "auto-pack", "a", false, "Automatically pack loose objects into packfiles")
	gcCmd.Flags().BoolVarP(&gcDryRun, "dry-run", "n", false, "Show what would be removed without actually removing anything")
	gcCmd.Flags().BoolVarP(&gcVerbose, "verbose", "v", false, "Show detailed information about the garbage collection process")
}

func runGC(cmd *cobra.Command, args []string) error {
	repoRoot, err := utils.GetVecRoot()
	if err != nil {
		return fmt.Errorf("error finding repository: %v", err)
	}

	stats, err := maintenance.GarbageCollect(maintenance.GarbageCollectOptions{
		RepoRoot: repoRoot,
		Prune:    gcPrune,
		AutoPack: gcAutoPack,
		DryRun:   gcDryRun,
		Verbose:  gcVerbose,
	})
	if err != nil {
		return fmt.Errorf("garbage collection failed: %v", err)
	}

	printGCSummary(stats, gcDryRun)
	return nil
}

// printGCSummary reports what a GarbageCollect run did or, under --dry-run,
// would have done.
func printGCSummary(stats *maintenance.GCStats, dryRun bool) {
	if dryRun {
		fmt.Println("Dry run: no changes were made")
	}

	fmt.Printf("Garbage collection complete:\n")
	fmt.Printf("- Examined %d objects\n", stats.ObjectsExamined)

	if stats.ObjectsRemoved > 0 || dryRun {
		fmt.Printf("- Removed %d unreferenced objects\n", stats.ObjectsRemoved)
	}
	if stats.ObjectsPacked > 0 || dryRun {
		fmt.Printf("- Packed %d loose objects into packfiles\n", stats.ObjectsPacked)
	}
	if stats.PackfilesPruned > 0 || dryRun {
		fmt.Printf("- Pruned %d redundant packfiles\n", stats.PackfilesPruned)
	}
	if stats.SpaceSaved > 0 {
		fmt.Printf("- Saved %s of disk space\n", formatBytes(stats.SpaceSaved))
	}
}

// formatBytes renders n in whichever of bytes/KB/MB/GB keeps it under 1024.
func formatBytes(n int64) string {
	amount := float64(n)
	for _, unit := range []string{"bytes", "KB", "MB"} {
		if amount < 1024 {
			return fmt.Sprintf("%.2f %s", amount, unit)
		}
		amount /= 1024
	}
	return fmt.Sprintf("%.2f GB", amount)
}
