package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/versusfit/versus/internal/store"
)

func init() {
	rootCmd.AddCommand(badgesCmd)
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Show unread badge counts",
	Long:  "Show the locally persisted unread badge count for each conversation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		local, err := openStore()
		if err != nil {
			return err
		}
		defer local.Close()

		counts, err := store.NewBadgeRepository(local).Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load badges: %w", err)
		}

		if jsonOutput {
			return writeJSON(os.Stdout, counts)
		}

		if len(counts) == 0 {
			fmt.Fprintln(os.Stdout, "No unread conversations.")
			return nil
		}

		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		total := 0
		writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(writer, "CONVERSATION\tUNREAD")
		for _, id := range ids {
			fmt.Fprintf(writer, "%s\t%d\n", id, counts[id])
			total += counts[id]
		}
		fmt.Fprintf(writer, "total\t%d\n", total)
		return writer.Flush()
	},
}
