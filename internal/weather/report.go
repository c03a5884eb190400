package weather

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
)

// BatchReport summarizes one ingestion run.
type BatchReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Fetched is the number of raw entries in the payload.
	Fetched  int
	Inserted int
	Modified int

	// Skipped holds one *FieldError or *WriteError per entry that was not written.
	Skipped []error
}

// Changed is the number of writes that created or changed a document.
func (r BatchReport) Changed() int {
	return r.Inserted + r.Modified
}

// SkippedBy counts skipped entries whose error matches kind (ErrField or ErrWrite).
func (r BatchReport) SkippedBy(kind error) int {
	n := 0
	for _, err := range r.Skipped {
		if errors.Is(err, kind) {
			n++
		}
	}
	return n
}

// Err aggregates the per-record failures, or returns nil if there were none.
func (r BatchReport) Err() error {
	var result *multierror.Error
	for _, err := range r.Skipped {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Report writes the one-line run summary.
func Report(w io.Writer, r BatchReport) error {
	_, err := fmt.Fprintf(w, "fetched=%d, upserted/modified=%d\n", r.Fetched, r.Changed())
	return err
}
