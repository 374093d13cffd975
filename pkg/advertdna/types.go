package advertdna

import "github.com/himanishpuri/AdvertDNA/pkg/models"

type Outcome int

const (
	OutcomeRegistered Outcome = iota + 1
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Registration is the result of a successful Register call. Validation and
// engine failures are reported as errors instead.
type Registration struct {
	Outcome Outcome
	// Identifier is the new identifier for OutcomeRegistered and the existing
	// one for OutcomeDuplicate. It is empty when neither the store nor the
	// engine could supply it.
	Identifier    string
	CanonicalName string
	Filename      string
	// Resolved reports whether a newly registered Identifier was confirmed
	// by the identifier store.
	Resolved bool
	// Best is the top ranked engine record, if the engine returned any.
	Best *models.FingerprintRecord
}
