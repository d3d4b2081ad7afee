package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nomdev/corbo/internal/chat"
)

var (
	historyFormat string
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or export the transcript of a session",
	Long: `Show or export the transcript of a session. Transcripts are read
from the local cache and fetched from the server when missing.

Examples:
  corbo history show 12
  corbo history export 12 --format yaml -o trip.yaml`,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a transcript as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func init() {
	historyExportCmd.Flags().StringVarP(&historyFormat, "format", "f", "json", "output format: json or yaml")
	historyExportCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "write output to file")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
}

func loadTranscript(cmd *cobra.Command, arg string) ([]chat.Element, error) {
	id, err := parseSessionID(arg)
	if err != nil {
		return nil, err
	}
	elements, err := historySvc.Retrieve(cmd.Context(), id)
	if err != nil {
		notifier.Error("history", err)
		return nil, fmt.Errorf("retrieve history: %w", err)
	}
	return elements, nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	elements, err := loadTranscript(cmd, args[0])
	if err != nil {
		return err
	}
	if len(elements) == 0 {
		fmt.Fprintln(out(cmd), "This session is empty.")
		return nil
	}
	printTranscript(out(cmd), elements)
	return nil
}

// printTranscript replays finished elements through a printer.
func printTranscript(w io.Writer, elements []chat.Element) {
	p := newPrinter(w)
	for _, e := range elements {
		switch e.Kind {
		case chat.KindUserTranscript:
			fmt.Fprintf(w, "> %s\n", e.TextOr(""))
		case chat.KindAssistantMessage:
			if e.QuestionID == nil && e.Input == nil {
				p.handle(chat.Event{Kind: chat.ElementAppended, Element: e})
				continue
			}
			// Answers replay as a stream that completes at once.
			started := e
			started.Text = nil
			p.handle(chat.Event{Kind: chat.ElementAppended, Element: started})
			p.handle(chat.Event{Kind: chat.ElementUpdated, Element: e, Final: true})
		default:
			p.handle(chat.Event{Kind: chat.ElementAppended, Element: e})
		}
	}
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	elements, err := loadTranscript(cmd, args[0])
	if err != nil {
		return err
	}

	data, err := encodeTranscript(elements, historyFormat)
	if err != nil {
		return err
	}

	if historyOutput == "" {
		_, err = out(cmd).Write(data)
		return err
	}
	if err := os.WriteFile(historyOutput, data, 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(out(cmd), "Exported %d elements to %s\n", len(elements), historyOutput)
	return nil
}

func encodeTranscript(elements []chat.Element, format string) ([]byte, error) {
	data, err := json.MarshalIndent(elements, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	switch format {
	case "json":
		return append(data, '\n'), nil
	case "yaml", "yml":
		// Go through JSON so YAML keys match the wire names.
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("encode transcript: %w", err)
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
