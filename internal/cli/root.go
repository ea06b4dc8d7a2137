// Package cli defines the cobra command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/AxlandSlash/MeetingSummary/internal/app"
	"github.com/AxlandSlash/MeetingSummary/internal/config"
)

// Dependencies carries the assembled application into each command.
type Dependencies struct {
	App    *app.App
	Config *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meetingsummary",
		Short: "Record meetings, transcribe, and generate minutes",
		Long:  "Records meeting audio into overlapping segments, transcribes them with Vosk or Deepgram, merges the transcripts, and generates structured minutes with Gemini.",
	}

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewProcessCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewNoteCmd(deps))

	return rootCmd
}
