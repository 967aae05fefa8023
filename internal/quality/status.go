package quality

// Status classifies a pool number for the dashboard.
type Status string

const (
	StatusPoor      Status = "poor"
	StatusOverused  Status = "overused"
	StatusExcellent Status = "excellent"
	StatusHealthy   Status = "healthy"
)

const OveruseThreshold = 100

// DetermineStatus applies, in order: poor, overused, excellent, healthy.
// A nil avgMOS means no MOS data and skips the MOS comparisons.
func DetermineStatus(avgMOS *float64, compliance float64, todayUsage int64) Status {
	switch {
	case (avgMOS != nil && *avgMOS < 3.5) || compliance < 80:
		return StatusPoor
	case todayUsage > OveruseThreshold:
		return StatusOverused
	case avgMOS != nil && *avgMOS > 4.0 && compliance > 95:
		return StatusExcellent
	default:
		return StatusHealthy
	}
}
