package quality

import "github.com/oakmontrealty/voicrm-sydney/internal/domain"

type Statistics struct {
	TotalCalls        int     `json:"totalCalls"`
	AverageMOS        float64 `json:"averageMOS"`
	AverageLatency    float64 `json:"averageLatency"`
	AverageJitter     float64 `json:"averageJitter"`
	AveragePacketLoss float64 `json:"averagePacketLoss"`
	SLOCompliance     float64 `json:"sloCompliance"`
	ViolationCount    int     `json:"violationCount"`

	mosSamples int
}

// HasMOS reports whether any sample carried a MOS value.
func (s Statistics) HasMOS() bool { return s.mosSamples > 0 }

// Aggregate averages each metric over the samples that carry it.
// Compliance is 0 for an empty set.
func Aggregate(samples []domain.QualitySample) Statistics {
	st := Statistics{TotalCalls: len(samples)}
	if len(samples) == 0 {
		return st
	}

	var mos, lat, jit, loss mean
	compliant := 0
	for _, s := range samples {
		mos.add(s.MOS)
		lat.add(s.LatencyMs)
		jit.add(s.JitterMs)
		loss.add(s.PacketLossPct)
		if s.MeetsSLO {
			compliant++
		}
	}

	st.AverageMOS = mos.value()
	st.AverageLatency = lat.value()
	st.AverageJitter = jit.value()
	st.AveragePacketLoss = loss.value()
	st.SLOCompliance = float64(compliant) / float64(len(samples)) * 100
	st.ViolationCount = len(samples) - compliant
	st.mosSamples = mos.n
	return st
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}
