package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/versusfit/versus/internal/models"
	"github.com/versusfit/versus/internal/store"
)

var notificationsUnreadOnly bool

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.Flags().BoolVar(&notificationsUnreadOnly, "unread", false, "only show unread notifications")
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List account notifications",
	Long:  "List the locally persisted account notifications.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		local, err := openStore()
		if err != nil {
			return err
		}
		defer local.Close()

		records, err := store.NewNotificationRepository(local).Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load notifications: %w", err)
		}

		if notificationsUnreadOnly {
			filtered := records[:0]
			for _, record := range records {
				if !record.Read {
					filtered = append(filtered, record)
				}
			}
			records = filtered
		}

		if jsonOutput {
			return writeJSON(os.Stdout, records)
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stdout, "No notifications.")
			return nil
		}

		writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(writer, "ID\tTYPE\tREAD\tCREATED")
		for _, record := range records {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\n",
				record.ID,
				record.Type,
				formatRead(record),
				record.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return writer.Flush()
	},
}

func formatRead(record models.Notification) string {
	if record.Read {
		return "read"
	}
	return "unread"
}
