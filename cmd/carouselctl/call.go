package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/assignment"
	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/collision"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/telephony"
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place test calls through the carousel",
}

var callDialCmd = &cobra.Command{
	Use:   "dial <destination>",
	Short: "Choose a caller ID for an agent and place the call via Twilio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		agent, _ := cmd.Flags().GetString("agent")
		contact, _ := cmd.Flags().GetString("contact")
		strategy, _ := cmd.Flags().GetString("strategy")

		provider, err := telephony.NewTwilioProvider(twilioConfig())
		if err != nil {
			return err
		}

		db, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		ledger := assignment.NewPostgresLedger(db)
		dir := numbers.NewDirectory(numbers.NewPostgresRepo(db), ledger)
		contacts := collision.NewPostgresStore(db)
		sel := carousel.NewSelector(carousel.Deps{
			Numbers:    dir,
			Recorder:   assignment.NewRecorder(ledger, dir, contacts, log),
			Collisions: collision.NewDetector(contacts, 0, nil),
			Log:        log,
		})

		res, err := sel.Choose(ctx, carousel.ChooseRequest{
			AgentID:           agent,
			ContactID:         contact,
			DestinationNumber: args[0],
			Strategy:          strategy,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Caller ID: %s (%s)\n", color.GreenString(res.SelectedNumber.PhoneNumber), res.Reason)
		if w := res.CollisionWarning; w != nil {
			color.Yellow("! %s collision: %s contacted this lead %dh ago", w.Severity, w.AgentName, w.HoursAgo)
		}

		h, err := provider.Connect(ctx, telephony.ConnectRequest{
			To:   args[0],
			From: res.SelectedNumber.E164,
		})
		if err != nil {
			return err
		}
		log.Info("call placed",
			zap.String("call_sid", h.CallSid),
			zap.String("assignment_id", res.AssignmentID),
		)
		color.Green("✓ %s queued (%s)", h.CallSid, h.Status)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <identity>",
	Short: "Mint a softphone access token for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ti, err := telephony.NewTokenIssuer(twilioConfig())
		if err != nil {
			return err
		}
		tok, err := ti.Issue(args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println(tok.Token)
		log.Debug("token issued", zap.String("identity", tok.Identity), zap.Time("expires", tok.Expires))
		return nil
	},
}

func init() {
	f := callDialCmd.Flags()
	f.StringP("agent", "a", "", "agent id placing the call (required)")
	f.StringP("contact", "c", "", "contact id, enables the collision check")
	f.StringP("strategy", "s", "", "selection strategy, defaults to "+carousel.DefaultStrategy.String())
	_ = callDialCmd.MarkFlagRequired("agent")

	callCmd.AddCommand(callDialCmd)
	rootCmd.AddCommand(callCmd, tokenCmd)
}
