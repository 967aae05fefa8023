package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/assignment"
	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage the outbound number pool",
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active numbers with today's usage and 24h quality",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		loc, err := time.LoadLocation(v.GetString("carousel.timezone"))
		if err != nil {
			return fmt.Errorf("carousel.timezone: %w", err)
		}
		sel := carousel.NewSelector(carousel.Deps{
			Numbers:  directory(db),
			Quality:  quality.NewService(quality.NewPostgresRepo(db), log, nil),
			Log:      log,
			Location: loc,
		})
		ov, err := sel.PoolOverview(ctx)
		if err != nil {
			return err
		}
		if len(ov.Numbers) == 0 {
			color.Yellow("No active numbers. Add one with 'carouselctl pool add <number>'.")
			return nil
		}
		renderPool(os.Stdout, ov.Numbers)
		return nil
	},
}

var poolAddCmd = &cobra.Command{
	Use:   "add <number>",
	Short: "Provision a number into the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		carrier, _ := cmd.Flags().GetString("carrier")
		region, _ := cmd.Flags().GetString("region")
		n, err := directory(db).Provision(ctx, numbers.ProvisionInput{
			PhoneNumber: args[0],
			Carrier:     carrier,
			Region:      region,
		})
		if err != nil {
			return err
		}
		log.Info("number provisioned", zap.String("phone_number_id", n.ID), zap.String("region", n.Region))
		color.Green("✓ Added %s (%s, %s) as %s", n.PhoneNumber, n.Region, n.Carrier, n.ID)
		return nil
	},
}

var poolDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Take a number out of rotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := directory(db).Deactivate(ctx, args[0]); err != nil {
			return err
		}
		log.Info("number deactivated", zap.String("phone_number_id", args[0]))
		color.Green("✓ Number %s deactivated", args[0])
		return nil
	},
}

func init() {
	poolAddCmd.Flags().StringP("carrier", "c", "", "carrier name (inferred when empty)")
	poolAddCmd.Flags().StringP("region", "r", "", "state code, defaults to "+numbers.DefaultRegion)

	poolCmd.AddCommand(poolListCmd, poolAddCmd, poolDeactivateCmd)
	rootCmd.AddCommand(poolCmd)
}

func directory(db utils.DB) *numbers.Directory {
	return numbers.NewDirectory(numbers.NewPostgresRepo(db), assignment.NewPostgresLedger(db))
}

func renderPool(w io.Writer, entries []carousel.PoolEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Number", "Region", "Carrier", "Health", "Today", "Total", "Avg MOS", "SLO %", "Status"})
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, e := range entries {
		mos := "-"
		if e.AverageMOS != nil {
			mos = strconv.FormatFloat(*e.AverageMOS, 'f', 2, 64)
		}
		table.Append([]string{
			e.ID,
			e.Formatted,
			e.Region,
			e.Carrier,
			fmt.Sprintf("%d%%", e.HealthPercent()),
			strconv.FormatInt(e.TodayUsage, 10),
			strconv.FormatInt(e.UsageCount, 10),
			mos,
			strconv.FormatFloat(e.SLOCompliance, 'f', 0, 64),
			statusLabel(e.Status),
		})
	}
	table.Render()
}

func statusLabel(s quality.Status) string {
	switch s {
	case quality.StatusPoor:
		return color.RedString(string(s))
	case quality.StatusOverused:
		return color.YellowString(string(s))
	case quality.StatusExcellent:
		return color.GreenString(string(s))
	default:
		return string(s)
	}
}
