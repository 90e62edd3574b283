package engine

import (
	"fmt"
	"io"
	"time"
)

// Failure is one entity a sweep could not post.
type Failure struct {
	EntityID int64  `json:"entity_id"`
	Error    string `json:"error"`
}

// Report summarizes one reconciliation run.
// Posted includes the estimated entities.
type Report struct {
	RunID         string    `json:"run_id"`
	Domain        string    `json:"domain"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Scanned       int       `json:"scanned"`
	AlreadyPosted int       `json:"already_posted"`
	Posted        int       `json:"posted"`
	Estimated     int       `json:"estimated"`
	Skipped       int       `json:"skipped"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Render writes a human-readable summary of the report to w.
func (r *Report) Render(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("\n=== Reconciliation: %s ===\n", r.Domain)
	printf("Run ID:          %s\n", r.RunID)
	printf("Duration:        %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	printf("Scanned:         %d\n", r.Scanned)
	printf("Already posted:  %d\n", r.AlreadyPosted)
	printf("Posted:          %d\n", r.Posted)
	printf("  estimated:     %d\n", r.Estimated)
	printf("Skipped:         %d\n", r.Skipped)
	printf("Failures:        %d\n", len(r.Failures))
	for _, f := range r.Failures {
		printf("  - entity %d: %s\n", f.EntityID, f.Error)
	}
	printf("\n")
	return err
}
