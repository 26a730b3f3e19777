package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across storage and handlers
var (
	// ErrNotFound indicates the requested job or result does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotReady indicates results were requested before the job completed
	ErrNotReady = errors.New("job not completed")
	// ErrInvalidInput indicates a submission that failed validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrJobTerminal indicates an update against a job already in a final state
	ErrJobTerminal = errors.New("job already in terminal state")
)

// PersistenceError wraps a storage failure with the operation that caused it
type PersistenceError struct {
	Op    string
	JobID string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("persistence %s for %s: %v", e.Op, e.JobID, e.Err)
	}
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ScrapeError wraps a scraping failure with the URL that caused it
type ScrapeError struct {
	URL string
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// GenerationError wraps an LLM keyword generation failure with the provider
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("keyword generation via %s: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RankCheckError wraps a SERP lookup failure with the keyword being checked
type RankCheckError struct {
	Keyword string
	Err     error
}

func (e *RankCheckError) Error() string {
	return fmt.Sprintf("rank check %q: %v", e.Keyword, e.Err)
}

func (e *RankCheckError) Unwrap() error { return e.Err }
