package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinboard/kinboard/auth"
	"github.com/kinboard/kinboard/client"
	"github.com/kinboard/kinboard/internal/app"
)

// unlockCmd answers the biometric prompt with the sensor result chosen by
// --biometric.
var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Answer the biometric prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		out := cmd.OutOrStdout()

		if st := a.Auth.Start(cmd.Context()); st != auth.AuthenticatingBiometric {
			fmt.Fprintf(out, "No biometric prompt pending (state: %s).\n", st)
			return nil
		}
		if err := answerPrompt(cmd, a); err != nil {
			return err
		}
		fmt.Fprintf(out, "state: %s\n", a.Auth.State())
		if msg := a.Auth.Message(); msg != "" {
			fmt.Fprintln(out, msg)
		}
		return nil
	},
}

// answerPrompt stands in for the platform biometric prompt.
func answerPrompt(cmd *cobra.Command, a *app.App) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	purpose, _ := a.Auth.Prompt()
	fmt.Fprintf(out, "Biometric prompt: %s\n", purpose)

	var err error
	switch biometricOutcome {
	case "success":
		if err := a.Auth.BiometricSucceeded(ctx); err != nil {
			fmt.Fprintln(out, client.Message(err))
		}
	case "cancel":
		_, err = a.Auth.BiometricFailed(ctx, &auth.BiometricError{Kind: auth.BiometricCanceled})
	case "lockout":
		_, err = a.Auth.BiometricFailed(ctx, &auth.BiometricError{Kind: auth.BiometricLockout})
	case "fail":
		for attempt := 1; a.Auth.State() == auth.AuthenticatingBiometric && err == nil; attempt++ {
			fmt.Fprintf(out, "Not recognized (attempt %d).\n", attempt)
			_, err = a.Auth.BiometricFailed(ctx, &auth.BiometricError{Kind: auth.BiometricNotRecognized})
		}
	default:
		err = fmt.Errorf("unknown --biometric outcome %q", biometricOutcome)
	}
	return err
}

var biometricCmd = &cobra.Command{
	Use:   "biometric",
	Short: "Manage biometric unlock",
}

var biometricEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable biometric unlock after confirming the password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		if err := requireSession(cmd, a); err != nil {
			return err
		}
		password, err := newPrompter(cmd).password("Confirm password: ")
		if err != nil {
			return err
		}
		if err := a.Auth.EnableBiometric(cmd.Context(), password); err != nil {
			return errors.New(client.Message(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Biometric unlock enabled.")
		return nil
	},
}

var biometricDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable biometric unlock and forget cached credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		if err := a.Auth.DisableBiometric(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Biometric unlock disabled.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unlockCmd)
	biometricCmd.AddCommand(biometricEnableCmd, biometricDisableCmd)
	rootCmd.AddCommand(biometricCmd)
}
