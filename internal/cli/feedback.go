package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nomdev/corbo/internal/api"
)

var (
	feedbackPositive   bool
	feedbackNegative   bool
	feedbackText       string
	feedbackHarmful    bool
	feedbackNotTrue    bool
	feedbackNotHelpful bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <question-id>",
	Short: "Rate an answer",
	Long: `Rate the answer to a question. The question id is printed after
every answer.

Examples:
  corbo feedback 42 --positive
  corbo feedback 42 --negative --not-true --text "Ana moved to Porto"`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackPositive, "positive", false, "the answer was good")
	feedbackCmd.Flags().BoolVar(&feedbackNegative, "negative", false, "the answer was bad")
	feedbackCmd.Flags().StringVar(&feedbackText, "text", "", "free-form comment")
	feedbackCmd.Flags().BoolVar(&feedbackHarmful, "harmful", false, "the answer was harmful")
	feedbackCmd.Flags().BoolVar(&feedbackNotTrue, "not-true", false, "the answer was not true")
	feedbackCmd.Flags().BoolVar(&feedbackNotHelpful, "not-helpful", false, "the answer was not helpful")
	feedbackCmd.MarkFlagsMutuallyExclusive("positive", "negative")
	feedbackCmd.MarkFlagsOneRequired("positive", "negative")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid question id %q", args[0])
	}
	if feedbackPositive && (feedbackHarmful || feedbackNotTrue || feedbackNotHelpful) {
		return errors.New("reasons only apply to --negative")
	}

	fb := api.QuestionFeedback{
		QuestionID: id,
		Feedback:   feedbackText,
		IsPositive: feedbackPositive,
		IsHarmful:  feedbackHarmful,
		NotTrue:    feedbackNotTrue,
		NotHelpful: feedbackNotHelpful,
	}
	if err := apiClient.SubmitQuestionFeedback(cmd.Context(), fb); err != nil {
		notifier.Error("feedback", err)
		return fmt.Errorf("submit feedback: %w", err)
	}
	notifier.Message("Thanks for the feedback!")
	return nil
}
