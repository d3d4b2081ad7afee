package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nomdev/corbo/internal/analytics"
)

var loginCmd = &cobra.Command{
	Use:   "login <phone-number>",
	Short: "Request a verification code",
	Long: `Ask the backend to text a verification code to your phone.
Complete the login with 'corbo verify'.

Examples:
  corbo login +15550100`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <phone-number> <code>",
	Short: "Complete a login with the texted code",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func runLogin(cmd *cobra.Command, args []string) error {
	phone := strings.TrimSpace(args[0])
	if err := baseClient.PhoneNumberLogin(cmd.Context(), phone); err != nil {
		notifier.Error("login", err)
		return fmt.Errorf("request code: %w", err)
	}
	fmt.Fprintf(out(cmd), "Code sent to %s. Run 'corbo verify %s <code>'.\n", phone, phone)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	resp, err := baseClient.VerifyCode(ctx, strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
	if err != nil {
		notifier.Error("verify", err)
		return fmt.Errorf("verify code: %w", err)
	}
	if err := provider.Login(ctx, resp.Grant()); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	sink.Track(analytics.EventPhoneLogin, analytics.Props{"userId": resp.UserID})

	name := resp.PhoneNumber
	if resp.UserData != nil && resp.UserData.FirstName != "" {
		name = resp.UserData.FirstName
	}
	notifier.Message(fmt.Sprintf("✓ Logged in as %s", name))
	return nil
}

// runLogout relies on the logout listener registered in setup for output.
func runLogout(cmd *cobra.Command, args []string) error {
	provider.Logout(cmd.Context())
	return nil
}
