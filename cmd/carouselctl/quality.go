package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
)

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Call quality tooling",
}

var qualityEvalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate one sample against the SLO targets",
	Long:  "Only the metrics given as flags are checked; omitted metrics never count as a breach.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var s domain.QualitySample
		for flag, dst := range map[string]**float64{
			"mos":         &s.MOS,
			"latency":     &s.LatencyMs,
			"jitter":      &s.JitterMs,
			"packet-loss": &s.PacketLossPct,
		} {
			if !cmd.Flags().Changed(flag) {
				continue
			}
			val, err := cmd.Flags().GetFloat64(flag)
			if err != nil {
				return err
			}
			*dst = &val
		}

		ev := quality.Evaluate(s)
		renderEvaluation(os.Stdout, ev, quality.DefaultTargets)
		if !ev.MeetsSLO {
			return fmt.Errorf("%d SLO violation(s)", len(ev.Violations))
		}
		return nil
	},
}

func init() {
	f := qualityEvalCmd.Flags()
	f.Float64("mos", 0, "mean opinion score (1-5)")
	f.Float64("latency", 0, "round-trip latency in ms")
	f.Float64("jitter", 0, "jitter in ms")
	f.Float64("packet-loss", 0, "packet loss percentage")

	qualityCmd.AddCommand(qualityEvalCmd)
	rootCmd.AddCommand(qualityCmd)
}

func renderEvaluation(w io.Writer, ev quality.Evaluation, t quality.Targets) {
	fmt.Fprintf(w, "Targets: MOS >= %v, latency <= %vms, jitter <= %vms, packet loss <= %v%%\n",
		t.MOS, t.Latency, t.Jitter, t.PacketLoss)
	if ev.MeetsSLO {
		fmt.Fprintln(w, color.GreenString("✓ meets SLO"))
		return
	}
	for _, v := range ev.Violations {
		fmt.Fprintln(w, color.RedString("✗ "+v))
	}
}
