package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			meetings, err := deps.App.Store.Meetings()
			if err != nil {
				return err
			}

			if len(meetings) == 0 {
				fmt.Println("No meetings found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tDURATION\tCREATED")
			for _, m := range meetings {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.0fs\t%s\n",
					m.ID, m.Title, m.Status, m.Duration,
					m.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	return cmd
}
