package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/nomdev/corbo/internal/chat"
	"github.com/nomdev/corbo/internal/service"
)

var chatSession int64

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation. Every line is routed by what it
looks like: stories are saved, story searches list matching stories and
everything else is answered as a question.

Commands:
  /reask <question-id>   ask a previous question again
  /rename <title>        set the session title
  /quit                  leave the conversation

Ctrl+C cancels the answer being streamed; at the prompt it leaves.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Int64VarP(&chatSession, "session", "s", 0, "resume an existing session")
}

// lineReader keeps input history across chat runs.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader(dataDir string) *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &lineReader{line: line, historyFile: filepath.Join(dataDir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *lineReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *lineReader) Close() error {
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		_, _ = r.line.WriteHistory(f)
		f.Close()
	}
	return r.line.Close()
}

// interrupter cancels the operation in flight when SIGINT arrives.
type interrupter struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (i *interrupter) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	i.cancel = cancel
	i.mu.Unlock()
	return ctx, func() {
		i.mu.Lock()
		i.cancel = nil
		i.mu.Unlock()
		cancel()
	}
}

func (i *interrupter) interrupt() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel == nil {
		return false
	}
	i.cancel()
	i.cancel = nil
	return true
}

func runChat(cmd *cobra.Command, args []string) error {
	// Interrupts cancel the answer in flight, not the whole chat.
	ctx := context.WithoutCancel(cmd.Context())
	w := out(cmd)

	c, err := startChat(ctx, chatSession, true)
	if err != nil {
		return err
	}
	defer c.Leave(ctx)

	p := newPrinter(w)
	if chatSession != 0 {
		printTranscript(w, c.Conversation().Elements())
	}
	detach := p.attach(c.Conversation())
	defer detach()

	reader := newLineReader(cfg.DataDir)
	defer reader.Close()

	var current interrupter
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		for range sigs {
			if current.interrupt() {
				fmt.Fprintln(os.Stderr, "\n"+p.style(p.theme.errorStyle().Render, "[Cancelled]"))
			}
		}
	}()

	fmt.Fprintln(w, p.style(p.theme.hintStyle().Render, "Tell a story or ask a question. /quit to leave."))
	for {
		input, err := reader.read("corbo> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(w)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		opCtx, done := current.begin(ctx)
		quit, err := handleChatInput(opCtx, c, input)
		done()
		if quit {
			return nil
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("chat input failed", "error", err)
		}
	}
}

// handleChatInput runs one line of input. It reports whether the user
// asked to leave.
func handleChatInput(ctx context.Context, c *service.Chat, input string) (bool, error) {
	if !strings.HasPrefix(input, "/") {
		_, err := c.Submit(ctx, input)
		return false, err
	}

	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/reask":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			notifier.Message("Usage: /reask <question-id>")
			return false, nil
		}
		err = c.Reask(ctx, id)
		if errors.Is(err, service.ErrQuestionNotFound) {
			notifier.Message(fmt.Sprintf("No question %d in this conversation.", id))
		}
		if errors.Is(err, chat.ErrAnswerInProgress) {
			notifier.Message("Wait for the current answer to finish.")
		}
		return false, err
	case "/rename":
		if rest == "" {
			notifier.Message("Usage: /rename <title>")
			return false, nil
		}
		err := c.Rename(ctx, rest)
		if errors.Is(err, service.ErrNoSession) {
			notifier.Message("Say something first; the session starts with the first answer.")
		} else if err == nil {
			notifier.Message("Renamed.")
		}
		return false, err
	default:
		notifier.Message(fmt.Sprintf("Unknown command %s", name))
		return false, nil
	}
}
