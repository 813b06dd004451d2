package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinboard/kinboard/client"
)

var (
	cardType  string
	cardTitle string
	cardAt    string
	cardNote  string
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage the family's cards",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards",
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

		cards, err := a.API.ListCards(cmd.Context())
		if err != nil {
			return reportAPIError(cmd, a, err)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTARTS\tTITLE")
		for _, c := range cards {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Details.CardType(), c.StartsAt.Local().Format("2006-01-02 15:04"), c.Title)
		}
		return w.Flush()
	},
}

var cardsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a card",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		details, err := detailsFor(client.CardType(cardType), cardNote)
		if err != nil {
			return err
		}
		startsAt := time.Now()
		if cardAt != "" {
			if startsAt, err = time.Parse(time.RFC3339, cardAt); err != nil {
				return fmt.Errorf("--at must be RFC 3339: %w", err)
			}
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		if err := requireSession(cmd, a); err != nil {
			return err
		}

		card, err := a.API.CreateCard(cmd.Context(), client.Card{Title: cardTitle, StartsAt: startsAt, Details: details})
		if err != nil {
			return reportAPIError(cmd, a, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s.\n", card.Details.CardType(), card.ID)
		return nil
	},
}

var cardsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		if err := requireSession(cmd, a); err != nil {
			return err
		}
		if err := a.API.DeleteCard(cmd.Context(), args[0]); err != nil {
			return reportAPIError(cmd, a, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
		return nil
	},
}

// detailsFor builds the variant for t with note in its free-text field.
func detailsFor(t client.CardType, note string) (client.Details, error) {
	switch t {
	case client.CardAppointment:
		return client.Appointment{Notes: note}, nil
	case client.CardEvent:
		return client.Event{Location: note}, nil
	case client.CardTrip:
		return client.Trip{Destination: note}, nil
	case client.CardReminder:
		return client.Reminder{Note: note}, nil
	case client.CardMessage:
		return client.Note{Body: note}, nil
	default:
		return nil, fmt.Errorf("unknown card type %q", t)
	}
}

func init() {
	cardsAddCmd.Flags().StringVar(&cardType, "type", string(client.CardReminder), "Card type: appointment, event, trip, reminder, message")
	cardsAddCmd.Flags().StringVar(&cardTitle, "title", "", "Card title")
	cardsAddCmd.Flags().StringVar(&cardAt, "at", "", "Start time (RFC 3339, default now)")
	cardsAddCmd.Flags().StringVar(&cardNote, "note", "", "Free text: notes, location, destination or message body")
	_ = cardsAddCmd.MarkFlagRequired("title")
	cardsCmd.AddCommand(cardsListCmd, cardsAddCmd, cardsDeleteCmd)
	rootCmd.AddCommand(cardsCmd)
}
