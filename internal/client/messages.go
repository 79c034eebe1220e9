package client

import "time"

type advisoryTier struct {
	after   time.Duration
	message string
}

// Tiers are ordered by descending threshold.
var advisoryTiers = []advisoryTier{
	{15 * time.Minute, "This is taking much longer than expected. We will keep checking, and you can come back later."},
	{10 * time.Minute, "Still generating. Large document sets can take over ten minutes."},
	{5 * time.Minute, "Generation is taking longer than usual, but the job is still running."},
	{2 * time.Minute, "Processing your documents. This usually takes a few minutes."},
	{1 * time.Minute, "Still working on your assessment..."},
}

const initialAdvisory = "Generating your assessment..."

// AdvisoryMessage maps elapsed time to reassurance copy. It is display only
// and never consulted for control decisions.
func AdvisoryMessage(elapsed time.Duration) string {
	for _, tier := range advisoryTiers {
		if elapsed >= tier.after {
			return tier.message
		}
	}
	return initialAdvisory
}

// EstimateProgress is the fallback percentage shown while the server reports none.
func EstimateProgress(elapsed time.Duration) int {
	return min(5+int(elapsed/time.Second)/10, 90)
}
