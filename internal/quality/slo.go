// Package quality audits call audio samples against fixed SLO targets.
package quality

import (
	"fmt"
	"strconv"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// Targets are the Sydney SLO thresholds.
type Targets struct {
	MOS        float64 `json:"mos"`
	Latency    float64 `json:"latency"`
	Jitter     float64 `json:"jitter"`
	PacketLoss float64 `json:"packetLoss"`
}

var DefaultTargets = Targets{MOS: 4.2, Latency: 150, Jitter: 20, PacketLoss: 1.0}

const (
	MetricMOS        = "mos"
	MetricLatency    = "latency"
	MetricJitter     = "jitter"
	MetricPacketLoss = "packet_loss"
)

// Evaluation is the verdict for one sample. MeetsSLO is exactly
// len(Violations) == 0.
type Evaluation struct {
	Violations []string `json:"sloViolations"`
	MeetsSLO   bool     `json:"meetsSlo"`
	Breached   []string `json:"-"`
}

// Evaluate compares each present metric with DefaultTargets.
func Evaluate(s domain.QualitySample) Evaluation {
	return DefaultTargets.Evaluate(s)
}

// Evaluate checks metrics in a fixed order: MOS, latency, jitter, packet
// loss. Missing metrics never count as a breach.
func (t Targets) Evaluate(s domain.QualitySample) Evaluation {
	ev := Evaluation{Violations: []string{}}
	if s.MOS != nil && *s.MOS < t.MOS {
		ev.add(MetricMOS, fmt.Sprintf("MOS below target: %s < %s", num(*s.MOS), num(t.MOS)))
	}
	if s.LatencyMs != nil && *s.LatencyMs > t.Latency {
		ev.add(MetricLatency, fmt.Sprintf("Latency above target: %sms > %sms", num(*s.LatencyMs), num(t.Latency)))
	}
	if s.JitterMs != nil && *s.JitterMs > t.Jitter {
		ev.add(MetricJitter, fmt.Sprintf("Jitter above target: %sms > %sms", num(*s.JitterMs), num(t.Jitter)))
	}
	if s.PacketLossPct != nil && *s.PacketLossPct > t.PacketLoss {
		ev.add(MetricPacketLoss, fmt.Sprintf("Packet loss above target: %s%% > %s%%", num(*s.PacketLossPct), num(t.PacketLoss)))
	}
	ev.MeetsSLO = len(ev.Violations) == 0
	return ev
}

func (e *Evaluation) add(metric, msg string) {
	e.Violations = append(e.Violations, msg)
	e.Breached = append(e.Breached, metric)
}

// num renders the shortest decimal form: 4 rather than 4.0.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
