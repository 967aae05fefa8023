package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/phone"
)

var phoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Australian number utilities",
}

var phoneCheckCmd = &cobra.Command{
	Use:   "check <number>",
	Short: "Validate a number, score its answer rate and optionally suggest a caller ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info := phone.Validate(args[0])
		renderValidation(os.Stdout, args[0], info, phone.AnalyzeAnswerRate(args[0]))
		if !info.Valid {
			return fmt.Errorf("%s is not a valid Australian number", args[0])
		}

		usePool, _ := cmd.Flags().GetBool("suggest")
		if !usePool {
			return nil
		}
		ctx := cmd.Context()
		db, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		pool, err := directory(db).ListActive(ctx, numbers.Filter{})
		if err != nil {
			return err
		}
		s, err := phone.SuggestCallerID(args[0], pool, time.Now())
		if err != nil {
			return err
		}
		renderSuggestion(os.Stdout, s)
		return nil
	},
}

func init() {
	phoneCheckCmd.Flags().BoolP("suggest", "s", false, "score the active pool as caller IDs for this number")
	phoneCmd.AddCommand(phoneCheckCmd)
	rootCmd.AddCommand(phoneCmd)
}

func renderValidation(w io.Writer, raw string, info phone.Info, ar phone.AnswerRate) {
	if !info.Valid {
		fmt.Fprintf(w, "%s  %s\n", color.RedString("✗ invalid"), raw)
		if info.Error != "" {
			fmt.Fprintf(w, "  %s\n", info.Error)
		}
		return
	}
	fmt.Fprintf(w, "%s  %s\n", color.GreenString("✓ valid"), info.Formatted)
	fmt.Fprintf(w, "  International: %s\n", info.International)
	fmt.Fprintf(w, "  Type:          %s\n", info.Type)
	if info.Carrier != "" {
		fmt.Fprintf(w, "  Carrier:       %s\n", info.Carrier)
	}
	if info.Region != "" {
		fmt.Fprintf(w, "  Region:        %s\n", info.Region)
	}
	fmt.Fprintf(w, "  Answer score:  %d (%s)\n", ar.Score, strings.Join(ar.Factors, ", "))
	if ar.Recommendation != "" {
		fmt.Fprintf(w, "  Advice:        %s\n", ar.Recommendation)
	}
}

func renderSuggestion(w io.Writer, s phone.Suggestion) {
	fmt.Fprintf(w, "\nRecommended caller ID: %s (score %d)\n\n",
		color.GreenString(phone.Format(s.Recommended.Number.PhoneNumber)), s.Recommended.Score)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Number", "Region", "Score", "Reasons"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, o := range s.AllOptions {
		table.Append([]string{
			phone.Format(o.Number.PhoneNumber),
			o.Number.Region,
			fmt.Sprint(o.Score),
			strings.Join(o.Reasons, "; "),
		})
	}
	table.Render()
}
