package bulkload

import (
	"fmt"
	"sort"
)

// Error kinds carried on record errors.
const (
	KindValidation  = "validation"
	KindReferential = "referential_integrity"
)

// RecordError is one problem found in one input record.
type RecordError struct {
	File    string `json:"file"`
	Index   int    `json:"index"` // record position within the file, -1 for file-level errors
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e RecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s[%d]: %s: %s", e.File, e.Index, e.Kind, e.Message)
}

// CountDelta is the phase-4 verification result for one collection.
type CountDelta struct {
	Expected int `json:"expected"`
	Actual   int `json:"actual"`
}

// Mismatch reports whether the stored count diverged from the expectation.
func (d CountDelta) Mismatch() bool { return d.Expected != d.Actual }

// Report is the structured outcome of a bulk-load run. Errors are collected
// in full across phases 1 and 2; a record's error never hides its siblings.
type Report struct {
	DryRun bool                  `json:"dry_run"`
	Errors []RecordError         `json:"errors,omitempty"`
	Loaded map[string]int        `json:"loaded,omitempty"`
	Counts map[string]CountDelta `json:"counts,omitempty"`
}

// ErrorsByFile groups collected errors by source file, files sorted.
func (r *Report) ErrorsByFile() map[string][]RecordError {
	grouped := make(map[string][]RecordError)
	for _, e := range r.Errors {
		grouped[e.File] = append(grouped[e.File], e)
	}
	return grouped
}

// Files returns the sorted list of files that produced errors.
func (r *Report) Files() []string {
	seen := make(map[string]struct{})
	for _, e := range r.Errors {
		seen[e.File] = struct{}{}
	}
	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// HasErrors reports whether any validation or referential error was found.
func (r *Report) HasErrors() bool { return len(r.Errors) > 0 }
