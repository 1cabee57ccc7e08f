// Package progress defines the event structures emitted while a search runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSearchStart Stage = "SEARCH_START"
	StageSourceDone  Stage = "SOURCE_DONE"
	StageSearchDone  Stage = "SEARCH_DONE"
	StageSearchError Stage = "SEARCH_ERROR"
)

// Terminal reports whether the stage ends a search.
func (s Stage) Terminal() bool {
	return s == StageSearchDone || s == StageSearchError
}

// Outcome classifies one source run.
type Outcome string

// Source outcomes carried by SOURCE_DONE events.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeEmpty   Outcome = "empty"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Event captures a single milestone of a search.
type Event struct {
	// SearchID identifies the search run using the 16-byte UUID form.
	SearchID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage

	// Query, Location, Remote, MaxResults and Scraping describe the request on SEARCH_START.
	Query      string
	Location   string
	Remote     bool
	MaxResults int
	Scraping   bool

	// Source names the adapter on SOURCE_DONE.
	Source string
	// Phase is the adapter's stage label (apis, modern, traditional).
	Phase string
	// Outcome classifies the adapter run on SOURCE_DONE.
	Outcome Outcome
	// Count is the adapter's postings on SOURCE_DONE and the final result size on SEARCH_DONE.
	Count int
	// Dur captures adapter latency or total search time.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SearchID == [16]byte{} {
		return errors.New("search id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSearchStart, StageSearchDone, StageSearchError:
	case StageSourceDone:
		if e.Source == "" {
			return errors.New("source done requires source")
		}
		if e.Outcome == "" {
			return errors.New("source done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Count < 0 {
		return errors.New("count must be >= 0")
	}
	return nil
}

// SearchUUID converts the binary search ID to uuid.UUID for repositories.
func (e Event) SearchUUID() uuid.UUID {
	return uuid.UUID(e.SearchID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
