package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Inspect and repair the board files (status, reconcile, revalidate)",
}

var boardStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task counts per board and status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		snaps, err := Coord.Boards()
		if err != nil {
			return fmt.Errorf("loading boards: %w", err)
		}

		names := make([]string, 0, len(snaps))
		for name := range snaps {
			names = append(names, name)
		}
		sort.Strings(names)

		total := 0
		for _, name := range names {
			board := snaps[name]
			fmt.Printf("%s (%d task(s))\n", name, len(board.Tasks))
			counts := board.CountByStatus()
			for _, status := range models.AllStatuses() {
				if n := counts[status]; n > 0 {
					fmt.Printf("  %-26s %d\n", status, n)
				}
			}
			total += len(board.Tasks)
		}
		fmt.Printf("\nTotal: %d task(s)\n", total)
		return nil
	},
}

var boardReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair tasks left on two boards by an interrupted move",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		actions, err := Coord.Reconcile()
		if err != nil {
			return fmt.Errorf("reconciling: %w", err)
		}
		if len(actions) == 0 {
			fmt.Println("Boards are consistent; nothing to repair.")
			return nil
		}
		for _, a := range actions {
			fmt.Printf("Repaired %s: kept %s copy, dropped %s copy\n",
				a.TaskID, a.KeptBoard, a.DroppedBoard)
		}
		fmt.Printf("\n%d repair(s) applied\n", len(actions))
		return nil
	},
}

var boardRevalidateCmd = &cobra.Command{
	Use:   "revalidate <board>",
	Short: "Re-check a quarantined board after manual repair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		if err := Coord.Revalidate(args[0]); err != nil {
			return fmt.Errorf("revalidating: %w", err)
		}
		fmt.Printf("Board %s is healthy; quarantine lifted.\n", args[0])
		return nil
	},
}

func init() {
	boardCmd.AddCommand(boardStatusCmd)
	boardCmd.AddCommand(boardReconcileCmd)
	boardCmd.AddCommand(boardRevalidateCmd)
	rootCmd.AddCommand(boardCmd)
}
