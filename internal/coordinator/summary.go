package coordinator

import (
	"time"

	"github.com/google/uuid"

	"cropfetcher/internal/fetcher"
)

// Summary aggregates the outcomes of one run. It is used for reporting only.
type Summary struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Duration  time.Duration

	// Outcomes holds one entry per source, in descriptor order
	Outcomes []fetcher.Outcome
}

// Succeeded returns the number of sources that wrote a snapshot.
func (s *Summary) Succeeded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of sources that failed.
func (s *Summary) Failed() int {
	return len(s.Outcomes) - s.Succeeded()
}

// Outcome returns the outcome for the named source.
func (s *Summary) Outcome(name string) (fetcher.Outcome, bool) {
	for _, o := range s.Outcomes {
		if o.Source == name {
			return o, true
		}
	}
	return fetcher.Outcome{}, false
}

// Report is the serializable view of a Summary.
type Report struct {
	RunID     string         `yaml:"run_id"`
	StartedAt time.Time      `yaml:"started_at"`
	Duration  string         `yaml:"duration"`
	Succeeded int            `yaml:"succeeded"`
	Failed    int            `yaml:"failed"`
	Sources   []SourceReport `yaml:"sources"`
}

// SourceReport is one source's line in a Report.
type SourceReport struct {
	Name        string `yaml:"name"`
	Mode        string `yaml:"mode"`
	Status      string `yaml:"status"`
	Destination string `yaml:"destination,omitempty"`
	Rows        int    `yaml:"rows,omitempty"`
	Duration    string `yaml:"duration"`
	Error       string `yaml:"error,omitempty"`
	ErrorType   string `yaml:"error_type,omitempty"`
}

// Report builds the serializable view of the summary.
func (s *Summary) Report() Report {
	r := Report{
		RunID:     s.RunID.String(),
		StartedAt: s.StartedAt,
		Duration:  s.Duration.Round(time.Millisecond).String(),
		Succeeded: s.Succeeded(),
		Failed:    s.Failed(),
		Sources:   make([]SourceReport, 0, len(s.Outcomes)),
	}
	for _, o := range s.Outcomes {
		sr := SourceReport{
			Name:     o.Source,
			Mode:     o.Mode,
			Status:   "success",
			Duration: o.Duration.Round(time.Millisecond).String(),
		}
		if o.Succeeded() {
			sr.Destination = o.Destination
			sr.Rows = o.Rows
		} else {
			sr.Status = "failure"
			sr.Error = o.Err.Error()
			sr.ErrorType = string(fetcher.TypeOf(o.Err))
		}
		r.Sources = append(r.Sources, sr)
	}
	return r
}
