package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askSession  int64
	askContacts bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer",
	Long: `Ask a question about your stories and stream the answer as it is
written. The question is asked in a new session unless --session is given.

Examples:
  corbo ask "Where does Ana live?"
  corbo ask --contacts "Who works at Acme?"
  corbo ask --session 12 "And her sister?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Int64VarP(&askSession, "session", "s", 0, "ask within an existing session")
	askCmd.Flags().BoolVar(&askContacts, "contacts", false, "search only your contacts")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	c, err := startChat(ctx, askSession, false)
	if err != nil {
		return err
	}
	defer c.Leave(context.WithoutCancel(ctx))

	p := newPrinter(out(cmd))
	p.answersOnly = true
	detach := p.attach(c.Conversation())
	defer detach()

	if err := c.Question(ctx, question, askContacts); err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if id, ok := c.Conversation().SessionID(); ok && askSession == 0 {
		fmt.Fprintln(out(cmd), p.style(p.theme.hintStyle().Render,
			fmt.Sprintf("session %d · continue with 'corbo chat --session %d'", id, id)))
	}
	return nil
}
