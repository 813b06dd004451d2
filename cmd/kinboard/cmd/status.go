package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinboard/kinboard/auth"
	"github.com/kinboard/kinboard/client"
)

var checkRemote bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the local session state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		st := a.Auth.Start(ctx)
		if st == auth.Authenticated && checkRemote {
			if _, err := a.API.Me(ctx); err != nil {
				if !errors.Is(err, client.ErrSessionExpired) {
					return errors.New(client.Message(err))
				}
				a.Auth.HandleSessionExpired(ctx)
				fmt.Fprintln(out, a.Auth.Message())
				if err := a.Auth.AcknowledgeExpiry(); err != nil {
					return err
				}
				st = a.Auth.State()
			}
		}

		fmt.Fprintf(out, "state:      %s\n", st)
		if purpose, ok := a.Auth.Prompt(); ok {
			fmt.Fprintf(out, "prompt:     %s\n", purpose)
		}
		if u, ok := a.Profile.User(); ok {
			fmt.Fprintf(out, "user:       %s %s <%s>\n", u.FirstName, u.LastName, u.Email)
		}
		fmt.Fprintf(out, "session:    %t\n", a.Cookies.HasSessionCookie())
		fmt.Fprintf(out, "biometric:  %t\n", a.Profile.BiometricEnabled())
		fmt.Fprintf(out, "vault:      %t\n", a.Vault.HasCredentials())
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&checkRemote, "check", false, "Verify the session with the backend")
	rootCmd.AddCommand(statusCmd)
}
