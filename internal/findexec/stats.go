package findexec

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// FileEntry is a single file produced by the walker.
type FileEntry struct {
	// Path is the entry path, joined onto the walk root as given.
	Path string
	// UID is the numeric id of the owning user.
	UID uint32
	// Size is the size in bytes.
	Size int64
	// IsDir reports whether the entry is a directory.
	IsDir bool
}

// OwnerGroup holds the matched files of one owner.
type OwnerGroup struct {
	// UID is the numeric owner id.
	UID uint32 `json:"uid"`
	// Username is the resolved name, or the decimal uid when unresolved groups are kept.
	Username string `json:"username"`
	// Files lists member paths in discovery order.
	Files []string `json:"files"`
	// Amount is the number of member files.
	Amount int `json:"amount"`
	// Size is the cumulative size of member files in bytes.
	Size int64 `json:"size"`
	// Resolved is false when Username is a numeric placeholder.
	Resolved bool `json:"-"`
}

// Reason classifies why an entry was skipped.
type Reason string

const (
	// ReasonReadDir marks a directory whose entries could not be listed.
	ReasonReadDir Reason = "read-dir"
	// ReasonStat marks an entry whose metadata could not be read.
	ReasonStat Reason = "stat"
	// ReasonOwner marks an entry without a readable owner id.
	ReasonOwner Reason = "owner"
	// ReasonLookup marks an owner name or id that has no user database entry.
	ReasonLookup Reason = "lookup"
)

// Skip records an entry the walk or aggregation could not consider.
type Skip struct {
	Path   string
	Reason Reason
	Err    error
}

func (s Skip) Error() string {
	if s.Err == nil {
		return fmt.Sprintf("%s: %s", s.Reason, s.Path)
	}

	return fmt.Sprintf("%s: %s: %v", s.Reason, s.Path, s.Err)
}

func (s Skip) Unwrap() error {
	return s.Err
}

// Report is the outcome of a full run.
type Report struct {
	// Groups is ordered by descending Amount.
	Groups []OwnerGroup
	// Unresolved lists owner ids that had no username.
	Unresolved []uint32
	// Skipped lists entries the run could not consider.
	Skipped []Skip
	// Matched is the number of files that passed classification.
	Matched int
	// Elapsed is the total time taken.
	Elapsed time.Duration
}

// Err joins every skip diagnostic into one error, or nil if nothing was skipped.
func (r *Report) Err() error {
	var errs error
	for _, s := range r.Skipped {
		errs = multierr.Append(errs, s)
	}

	return errs
}

// Options configures a run and CLI behavior.
type Options struct {
	// Path is the directory to scan.
	Path string
	// Recursive enables descent into subdirectories.
	Recursive bool
	// Exclude skips entries whose base name contains it (empty = off).
	Exclude string
	// ExcludeUsers skips entries owned by any of these usernames.
	ExcludeUsers []string
	// Strategy names the classifier (elf, exec, elf+exec).
	Strategy string
	// Parallel walks with fastwalk instead of the sequential queue.
	Parallel bool
	// KeepUnresolved keeps groups whose owner has no username.
	KeepUnresolved bool
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
	// Output represents output format (text, json or table).
	Output string
	// LogLevel is the diagnostic log level.
	LogLevel string
}

// progress tracks running totals for the progress hook.
// Walk callbacks may run on several goroutines in parallel mode.
type progress struct {
	mu    sync.Mutex
	files int64
	bytes int64
}

func (p *progress) add(size int64) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.files++
	p.bytes += size
}

func (p *progress) snapshot() (int64, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.files, p.bytes
}
