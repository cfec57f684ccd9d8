package models

// HitOutcome records what happened to a single hit during a run
type HitOutcome struct {
	Index int // 1-based position in the search result
	Hit   SearchHit
	File  *SubtitleFile // nil when Err is set
	Err   error
}

// RunReport summarizes one lookup
type RunReport struct {
	IMDBID    string
	Languages []string
	FromCache bool
	Outcomes  []HitOutcome
	NotFound  error // set when the search returned no hits, never fatal
}

// Failed returns the number of hits that could not be materialized.
func (r *RunReport) Failed() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Succeeded returns the number of hits written to disk.
func (r *RunReport) Succeeded() int {
	if r == nil {
		return 0
	}
	return len(r.Outcomes) - r.Failed()
}
