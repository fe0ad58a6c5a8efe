package fetcher

import (
	"time"
)

// Outcome is the terminal result of one source's fetch attempt.
// It is either a success with Rows > 0 or a failure carrying Err;
// there is no partial state.
type Outcome struct {
	// Source is the name of the source that produced this outcome
	Source string

	// Destination is the snapshot artifact written on success
	Destination string

	// Mode is the execution model the source ran under
	Mode string

	// Rows and Columns describe the written table. Both are zero on failure.
	Rows    int
	Columns int

	Duration time.Duration

	// Err is the failure reason. If Err is not nil, nothing was written.
	Err error
}

// Succeeded reports whether the source produced and wrote a snapshot.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}
