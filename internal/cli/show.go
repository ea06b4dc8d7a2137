package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AxlandSlash/MeetingSummary/internal/llm"
)

func NewShowCmd(deps *Dependencies) *cobra.Command {
	var withTranscript bool

	cmd := &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Show a meeting's minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid meeting ID: %s", args[0])
			}

			m, err := deps.App.Store.Meeting(meetingID)
			if err != nil {
				return err
			}

			fmt.Printf("Meeting %d: %s\n", m.ID, m.Title)
			fmt.Printf("Status: %s  Duration: %.0fs  Created: %s\n",
				m.Status, m.Duration, m.CreatedAt.Format("2006-01-02 15:04"))
			if m.Participants != "" {
				fmt.Printf("Participants: %s\n", m.Participants)
			}

			if m.Summary != "" {
				fmt.Printf("\nSummary\n  %s\n", m.Summary)
			}

			printDecisions(m.DecisionsJSON)
			printActionItems(m.ActionItemsJSON)
			printTopics(m.TopicsJSON)

			if withTranscript {
				if err := printTranscript(deps, meetingID); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withTranscript, "transcript", false, "Include the full transcript")

	return cmd
}

func printDecisions(raw string) {
	var decisions []llm.Decision
	if raw == "" || json.Unmarshal([]byte(raw), &decisions) != nil || len(decisions) == 0 {
		return
	}
	fmt.Println("\nDecisions")
	for _, d := range decisions {
		if d.Participants != "" {
			fmt.Printf("  - %s (%s)\n", d.Content, d.Participants)
		} else {
			fmt.Printf("  - %s\n", d.Content)
		}
	}
}

func printActionItems(raw string) {
	var items []llm.ActionItem
	if raw == "" || json.Unmarshal([]byte(raw), &items) != nil || len(items) == 0 {
		return
	}
	fmt.Println("\nAction items")
	for _, it := range items {
		line := "  - " + it.Task
		if it.Assignee != "" {
			line += " [" + it.Assignee + "]"
		}
		if it.Deadline != "" {
			line += " due " + it.Deadline
		}
		fmt.Println(line)
	}
}

func printTopics(raw string) {
	var topics []llm.Topic
	if raw == "" || json.Unmarshal([]byte(raw), &topics) != nil || len(topics) == 0 {
		return
	}
	fmt.Println("\nTopics")
	for _, t := range topics {
		fmt.Printf("  %s\n    %s\n", t.Title, t.Content)
	}
}

func printTranscript(deps *Dependencies, meetingID int64) error {
	recs, err := deps.App.Store.TranscriptByMeeting(meetingID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("\nNo transcript recorded")
		return nil
	}

	fmt.Println("\nTranscript")
	for _, r := range recs {
		fmt.Printf("  [%7.1fs] %s: %s\n", r.Start, r.Speaker, r.Text)
	}
	return nil
}
