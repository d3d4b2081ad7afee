package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, rename or delete sessions",
	Long: `Manage your conversation sessions.

Subcommands:
  list     List sessions, newest first (default)
  rename   Set the title of a session
  delete   Delete a session and its cached history

Examples:
  corbo sessions
  corbo sessions rename 12 "Trip planning"
  corbo sessions delete 12`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Set the title of a session",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSessionsRename,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	sessions, err := apiClient.ListSessions(cmd.Context())
	if err != nil {
		notifier.Error("sessions", err)
		return fmt.Errorf("list sessions: %w", err)
	}

	w := out(cmd)
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions yet. Start one with 'corbo chat'.")
		return nil
	}

	fmt.Fprintf(w, "Sessions (%d):\n\n", len(sessions))
	for _, s := range sessions {
		var id int64
		if s.ID != nil {
			id = *s.ID
		}
		created := ""
		if s.CreatedTime != nil {
			created = s.CreatedTime.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%6d  %-16s  %s\n", id, created, s.DisplayTitle())
	}
	return nil
}

func runSessionsRename(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}
	title := strings.TrimSpace(strings.Join(args[1:], " "))
	if title == "" {
		return fmt.Errorf("title must not be empty")
	}

	if err := apiClient.RenameSession(cmd.Context(), id, title); err != nil {
		notifier.Error("sessions rename", err)
		return fmt.Errorf("rename session: %w", err)
	}
	fmt.Fprintf(out(cmd), "Renamed session %d to %q\n", id, title)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	if err := apiClient.DeleteSession(ctx, id); err != nil {
		notifier.Error("sessions delete", err)
		return fmt.Errorf("delete session: %w", err)
	}
	if err := historySvc.Forget(ctx, id); err != nil {
		logger.Warn("failed to drop cached history", "session_id", id, "error", err)
	}
	fmt.Fprintf(out(cmd), "Deleted session %d\n", id)
	return nil
}

func parseSessionID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return id, nil
}
