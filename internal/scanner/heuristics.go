package scanner

import "time"

// Heuristics holds the tunable constants of the job-list classifier. The
// defaults reproduce observed behavior; they are not derived from a model.
type Heuristics struct {
	MinRepeats       int     `yaml:"min_repeats"`
	ApplyWeight      float64 `yaml:"apply_weight"`
	LinkWeight       float64 `yaml:"link_weight"`
	CardWeight       float64 `yaml:"card_weight"`
	PaginationWeight float64 `yaml:"pagination_weight"`
	SearchWeight     float64 `yaml:"search_weight"`

	// Detail vocabulary repeated this often reads as many postings.
	KeywordRepeatThreshold int     `yaml:"keyword_repeat_threshold"`
	KeywordRepeatBonus     float64 `yaml:"keyword_repeat_bonus"`
	DetailPenaltyMany      float64 `yaml:"detail_penalty_many"`
	DetailPenaltySome      float64 `yaml:"detail_penalty_some"`
	DetailPenaltyOne       float64 `yaml:"detail_penalty_one"`

	ListingThreshold float64 `yaml:"listing_threshold"`
}

// DefaultHeuristics returns the stock listing weights.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		MinRepeats:             3,
		ApplyWeight:            0.30,
		LinkWeight:             0.30,
		CardWeight:             0.20,
		PaginationWeight:       0.10,
		SearchWeight:           0.10,
		KeywordRepeatThreshold: 3,
		KeywordRepeatBonus:     0.35,
		DetailPenaltyMany:      0.40,
		DetailPenaltySome:      0.30,
		DetailPenaltyOne:       0.15,
		ListingThreshold:       0.4,
	}
}

// Options configures a Scanner.
type Options struct {
	// Attempts is the total number of passes made while a page shows no
	// fields. Default: 3.
	Attempts int
	// Delay separates attempts. Default: 1s.
	Delay time.Duration
	// FrameTimeout bounds each frame of a multi-frame scan. Default: 5s.
	FrameTimeout time.Duration

	Heuristics Heuristics
}

func (o *Options) defaults() {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Delay <= 0 {
		o.Delay = time.Second
	}
	if o.FrameTimeout <= 0 {
		o.FrameTimeout = 5 * time.Second
	}
	if o.Heuristics == (Heuristics{}) {
		o.Heuristics = DefaultHeuristics()
	}
}
