package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AxlandSlash/MeetingSummary/internal/pipeline"
)

func NewProcessCmd(deps *Dependencies) *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "process <meeting-id>",
		Short: "Transcribe a recorded meeting and generate minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid meeting ID: %s", args[0])
			}

			if async {
				if err := deps.App.Pipeline.ProcessAsync(deps.App.Queue, meetingID, nil); err != nil {
					return fmt.Errorf("failed to queue processing: %w", err)
				}
				fmt.Printf("Meeting %d queued for processing\n", meetingID)
				return nil
			}

			return runProcess(deps, meetingID)
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Queue the run in the background instead of waiting")

	return cmd
}

// runProcess runs the pipeline in the foreground, printing progress as it
// moves through its stages.
func runProcess(deps *Dependencies, meetingID int64) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range deps.App.Pipeline.Events() {
			if ev.Err != nil {
				fmt.Fprintf(os.Stderr, "processing error: %v\n", ev.Err)
			} else {
				fmt.Printf("[%3.0f%%] %s: %s\n", ev.Progress*100, ev.State, ev.Message)
			}
			if ev.State == pipeline.StateDone || ev.State == pipeline.StateFailed {
				return
			}
		}
	}()

	err := deps.App.Pipeline.Process(context.Background(), meetingID, nil)
	<-done
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	fmt.Printf("Meeting %d processed, run 'meetingsummary show %d' to view the minutes\n", meetingID, meetingID)
	return nil
}
