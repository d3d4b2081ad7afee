package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomdev/corbo/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Prefetch the history of every session",
	Long: `Download the transcript of every session into the local cache so
'corbo chat --session' and 'corbo history show' open instantly.

A progress bar is shown when stdout is a terminal.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sessions, err := apiClient.ListSessions(ctx)
	if err != nil {
		notifier.Error("sync", err)
		return fmt.Errorf("list sessions: %w", err)
	}

	fetch := func(ctx context.Context, s models.Session) error {
		if s.ID == nil {
			return nil
		}
		_, err := historySvc.Retrieve(ctx, *s.ID)
		return err
	}

	var failed int
	if isTerminal(os.Stdout) {
		failed, err = runSyncProgress(ctx, sessions, fetch)
		if err != nil {
			return err
		}
	} else {
		w := out(cmd)
		for i, s := range sessions {
			if err := fetch(ctx, s); err != nil {
				failed++
				fmt.Fprintf(w, "[%d/%d] %s: %v\n", i+1, len(sessions), s.DisplayTitle(), err)
				continue
			}
			fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(sessions), s.DisplayTitle())
		}
	}

	if failed > 0 {
		return fmt.Errorf("sync: %d of %d sessions failed", failed, len(sessions))
	}
	return nil
}
