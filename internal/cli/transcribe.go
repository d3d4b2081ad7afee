package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var transcribeDetails bool

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a recording",
	Long: `Upload a recording to the transcription service and print the text.

Examples:
  corbo transcribe note.m4a
  corbo transcribe note.m4a --details`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeDetails, "details", false, "also print size, language and timings")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	t, err := apiClient.TranscribeAudio(cmd.Context(), f)
	if err != nil {
		notifier.Error("transcribe", err)
		return fmt.Errorf("transcribe: %w", err)
	}

	w := out(cmd)
	fmt.Fprintln(w, t.Text)
	if transcribeDetails {
		fmt.Fprintf(w, "\nSize:     %s bytes\n", t.FileSize)
		fmt.Fprintf(w, "Language: %s\n", t.Language)
		fmt.Fprintf(w, "Duration: %s\n", t.RecordDuration)
		fmt.Fprintf(w, "Took:     %s\n", t.OperationTime.FullTime)
	}
	return nil
}
