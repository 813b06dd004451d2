package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinboard/kinboard/auth"
	"github.com/kinboard/kinboard/client"
)

var remember bool

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Log in with email and password",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		ctx := cmd.Context()

		switch a.Auth.Start(ctx) {
		case auth.Authenticated:
			if u, ok := a.Profile.User(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Already logged in as %s.\n", u.Email)
			}
			return nil
		case auth.AuthenticatingBiometric:
			// Typing the password is the prompt's "use password" button.
			if _, err := a.Auth.BiometricFailed(ctx, &auth.BiometricError{Kind: auth.BiometricNegativeButton}); err != nil {
				return err
			}
		}

		p := newPrompter(cmd)
		var email string
		if len(args) == 1 {
			email = args[0]
		} else if email, err = p.line("Email: "); err != nil {
			return err
		}
		password, err := p.password("Password: ")
		if err != nil {
			return err
		}

		user, err := a.Auth.Login(ctx, email, password, remember)
		if err != nil {
			return errors.New(client.Message(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s %s.\n", user.FirstName, user.LastName)
		if remember {
			fmt.Fprintln(cmd.OutOrStdout(), "Biometric unlock enabled.")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		a.Auth.Start(cmd.Context())
		if err := a.Auth.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&remember, "remember", false, "Cache credentials for biometric unlock")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
