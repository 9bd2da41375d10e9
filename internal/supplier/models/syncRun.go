package models

import (
	"fmt"
	"sync"
	"time"
)

// Outcome is what happened to one fetched record inside the pipeline.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeUpdated     Outcome = "updated"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeBelowMargin Outcome = "below_margin"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeStoreError  Outcome = "store_error"
)

// SyncRun aggregates the statistics of one engine execution. Workers record
// into it concurrently; read the fields only after Finish.
type SyncRun struct {
	mu sync.Mutex

	ID          string
	Source      string
	Mode        UpsertMode
	Identifiers []string

	// Succeeded and Failed count identifiers; the rest count records.
	Succeeded          int
	Failed             int
	Fetched            int
	Created            int
	Updated            int
	SkippedDuplicate   int
	SkippedMarginFloor int
	SkippedInvalid     int
	StoreErrors        int
	ImageFailures      int

	StartedAt  time.Time
	FinishedAt time.Time
	Errors     []string
}

func NewSyncRun(id, source string, mode UpsertMode, identifiers []string, startedAt time.Time) *SyncRun {
	return &SyncRun{
		ID:          id,
		Source:      source,
		Mode:        mode,
		Identifiers: identifiers,
		StartedAt:   startedAt,
	}
}

// RecordSuccess marks an identifier whose records were all fetched and processed.
func (r *SyncRun) RecordSuccess(fetched int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Succeeded++
	r.Fetched += fetched
}

func (r *SyncRun) RecordFailure(identifier string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", identifier, err))
}

func (r *SyncRun) RecordOutcome(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeDuplicate:
		r.SkippedDuplicate++
	case OutcomeBelowMargin:
		r.SkippedMarginFloor++
	case OutcomeInvalid:
		r.SkippedInvalid++
	case OutcomeStoreError:
		r.StoreErrors++
	}
}

// RecordError keeps a record-level error (store or image) without failing the identifier.
func (r *SyncRun) RecordError(identifier string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", identifier, err))
}

func (r *SyncRun) RecordImageFailure(identifier string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ImageFailures++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: image: %v", identifier, err))
}

func (r *SyncRun) Finish(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = at
}

func (r *SyncRun) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary is the one-line operator view of the run.
func (r *SyncRun) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf(
		"identifiers=%d succeeded=%d failed=%d fetched=%d created=%d updated=%d duplicate=%d below_margin=%d invalid=%d image_failures=%d",
		len(r.Identifiers), r.Succeeded, r.Failed, r.Fetched, r.Created, r.Updated,
		r.SkippedDuplicate, r.SkippedMarginFloor, r.SkippedInvalid, r.ImageFailures,
	)
}
