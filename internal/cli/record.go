package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AxlandSlash/MeetingSummary/internal/capture"
	"github.com/AxlandSlash/MeetingSummary/internal/recorder"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var (
		title        string
		input        string
		realtime     bool
		perspective  string
		customFocus  string
		style        string
		participants string
		process      bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a meeting from a WAV file",
		Long:  "Creates a meeting and records audio replayed from a WAV file, segmenting it as it arrives. Recording stops when the file ends or on Ctrl+C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}

			meeting, err := deps.App.CreateMeeting(title, perspective, customFocus, style, participants)
			if err != nil {
				return err
			}

			// The factory hands back the created source so the command can
			// watch for end of playback.
			var source *capture.FileSource
			factory := func(onData capture.DataFunc) (capture.Source, error) {
				source = capture.NewFileSource(input, 0, realtime, onData)
				return source, nil
			}

			engine := deps.App.NewRecordingEngine(factory, input)

			go func() {
				for ev := range engine.Events() {
					switch ev.Kind {
					case recorder.EventSegment:
						fmt.Printf("segment %d written: %s\n", ev.Segment.Index, ev.Segment.Path)
					case recorder.EventError:
						fmt.Fprintf(os.Stderr, "recording error: %v\n", ev.Err)
					}
				}
			}()

			if err := engine.Start(meeting.ID); err != nil {
				return fmt.Errorf("failed to start recording: %w", err)
			}
			fmt.Printf("Recording meeting %d, press Ctrl+C to stop\n", meeting.ID)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sig)

			select {
			case <-sig:
				fmt.Println("\nStopping recording")
			case <-source.Done():
				// Give the engine a moment to flush blocks already queued.
				time.Sleep(200 * time.Millisecond)
				fmt.Println("Playback finished, stopping recording")
			}

			duration := engine.Stop()
			fmt.Printf("Recorded %.1fs of audio in %d segments\n", duration, engine.SegmentCount())

			if process {
				fmt.Println("Processing meeting")
				return runProcess(deps, meeting.ID)
			}

			fmt.Printf("Run 'meetingsummary process %d' to generate minutes\n", meeting.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "Untitled meeting", "Meeting title")
	cmd.Flags().StringVarP(&input, "input", "i", "", "WAV file to record from")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Pace playback to the audio clock")
	cmd.Flags().StringVar(&perspective, "perspective", "worker", "Minutes perspective: worker, manager, boss, or custom")
	cmd.Flags().StringVar(&customFocus, "custom-perspective", "", "Focus description when --perspective=custom")
	cmd.Flags().StringVar(&style, "style", "neutral", "Minutes tone: neutral, sarcastic, or comforting")
	cmd.Flags().StringVar(&participants, "participants", "", "Comma-separated participant names")
	cmd.Flags().BoolVar(&process, "process", false, "Generate minutes immediately after recording")

	return cmd
}
