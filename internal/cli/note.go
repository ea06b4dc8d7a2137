package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AxlandSlash/MeetingSummary/internal/store"
)

func NewNoteCmd(deps *Dependencies) *cobra.Command {
	var (
		offset float64
		tag    string
	)

	cmd := &cobra.Command{
		Use:   "note <meeting-id> <content...>",
		Short: "Attach a note to a meeting",
		Long:  "Attaches a timestamped note to a meeting. Notes are handed to the minutes generator as extra context.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid meeting ID: %s", args[0])
			}

			n := &store.Note{
				MeetingID:  meetingID,
				TimeOffset: offset,
				Content:    strings.Join(args[1:], " "),
				Tag:        tag,
			}
			if err := deps.App.Store.CreateNote(n); err != nil {
				return fmt.Errorf("failed to save note: %w", err)
			}

			fmt.Printf("Note %d added to meeting %d\n", n.ID, meetingID)
			return nil
		},
	}

	cmd.Flags().Float64Var(&offset, "offset", 0, "Seconds into the recording the note refers to")
	cmd.Flags().StringVar(&tag, "tag", "general", "Note tag: todo, risk, question, or general")

	return cmd
}
