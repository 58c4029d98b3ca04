package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Result describes one file that went through the compressor.
type Result struct {
	Filename       string `json:"filename" yaml:"filename"`
	Format         string `json:"format" yaml:"format"`
	OriginalSize   int64  `json:"original_size" yaml:"original_size"`
	NewSize        int64  `json:"new_size" yaml:"new_size"`
	OriginalWidth  int    `json:"original_width" yaml:"original_width"`
	OriginalHeight int    `json:"original_height" yaml:"original_height"`
	Width          int    `json:"width" yaml:"width"`
	Height         int    `json:"height" yaml:"height"`
	Resized        bool   `json:"resized" yaml:"resized"`
	Skipped        bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// Saved returns the bytes saved. Negative when the file grew.
func (r Result) Saved() int64 {
	return r.OriginalSize - r.NewSize
}

// Failure represents an error that occurred while processing one file.
type Failure struct {
	Filename  string    `json:"filename" yaml:"filename"`
	Kind      string    `json:"kind" yaml:"kind"`
	Message   string    `json:"message" yaml:"message"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

type entry struct {
	index   int
	result  *Result
	failure *Failure
}

// Report collects the outcome of one compressor run. It is safe for
// concurrent use; readers may inspect it while a run is still going.
type Report struct {
	Directory string

	mutex      sync.RWMutex
	startTime  time.Time
	endTime    time.Time
	filesFound int
	entries    []entry
}

// New returns a Report for a run over directory.
func New(directory string) *Report {
	return &Report{
		Directory: directory,
		startTime: time.Now(),
	}
}

// SetFilesFound records how many candidate files the scan produced.
func (r *Report) SetFilesFound(n int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.filesFound = n
}

// AddResult records a processed file at its position in the directory listing.
func (r *Report) AddResult(index int, res Result) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, entry{index: index, result: &res})
}

// AddFailure records a failed file at its position in the directory listing.
func (r *Report) AddFailure(index int, filename, kind, message string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, entry{index: index, failure: &Failure{
		Filename:  filename,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	}})
}

// Finalize stamps the end time.
func (r *Report) Finalize() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.endTime = time.Now()
}

// Finished reports whether Finalize was called.
func (r *Report) Finished() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return !r.endTime.IsZero()
}

// Duration returns the run time so far, or the total once finalized.
func (r *Report) Duration() time.Duration {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.duration()
}

// Helpers below expect the caller to hold the read lock.

func (r *Report) duration() time.Duration {
	if r.endTime.IsZero() {
		return time.Since(r.startTime)
	}
	return r.endTime.Sub(r.startTime)
}

// sorted returns a copy of the entries in directory order.
func (r *Report) sorted() []entry {
	out := make([]entry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func (r *Report) results() []Result {
	var results []Result
	for _, e := range r.sorted() {
		if e.result != nil {
			results = append(results, *e.result)
		}
	}
	return results
}

func (r *Report) failures() []Failure {
	var failures []Failure
	for _, e := range r.sorted() {
		if e.failure != nil {
			failures = append(failures, *e.failure)
		}
	}
	return failures
}

// Results returns the processed files in directory order.
func (r *Report) Results() []Result {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.results()
}

// Failures returns the failed files in directory order.
func (r *Report) Failures() []Failure {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.failures()
}

// Totals aggregates the results.
type Totals struct {
	FilesFound     int   `json:"files_found" yaml:"files_found"`
	Processed      int   `json:"processed" yaml:"processed"`
	Resized        int   `json:"resized" yaml:"resized"`
	Skipped        int   `json:"skipped" yaml:"skipped"`
	Failed         int   `json:"failed" yaml:"failed"`
	BytesBefore    int64 `json:"bytes_before" yaml:"bytes_before"`
	BytesAfter     int64 `json:"bytes_after" yaml:"bytes_after"`
	BytesSaved     int64 `json:"bytes_saved" yaml:"bytes_saved"`
	FilesGrown     int   `json:"files_grown" yaml:"files_grown"`
	DurationMillis int64 `json:"duration_ms" yaml:"duration_ms"`
}

// Totals returns the aggregate counters.
func (r *Report) Totals() Totals {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.totals()
}

func (r *Report) totals() Totals {
	t := Totals{FilesFound: r.filesFound, DurationMillis: r.duration().Milliseconds()}
	for _, e := range r.entries {
		if e.failure != nil {
			t.Failed++
			continue
		}
		res := e.result
		if res.Skipped {
			t.Skipped++
			continue
		}
		t.Processed++
		if res.Resized {
			t.Resized++
		}
		if res.NewSize > res.OriginalSize {
			t.FilesGrown++
		}
		t.BytesBefore += res.OriginalSize
		t.BytesAfter += res.NewSize
	}
	t.BytesSaved = t.BytesBefore - t.BytesAfter
	return t
}

// Snapshot is the serializable form of a Report.
type Snapshot struct {
	Directory string    `json:"directory" yaml:"directory"`
	Finished  bool      `json:"finished" yaml:"finished"`
	Totals    Totals    `json:"totals" yaml:"totals"`
	Results   []Result  `json:"results" yaml:"results"`
	Failures  []Failure `json:"failures" yaml:"failures"`
}

// Snapshot returns a consistent copy of the report, built under a single
// read lock.
func (r *Report) Snapshot() Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return Snapshot{
		Directory: r.Directory,
		Finished:  !r.endTime.IsZero(),
		Totals:    r.totals(),
		Results:   r.results(),
		Failures:  r.failures(),
	}
}

// WriteYAML writes the snapshot as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Snapshot()); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// Summary returns a formatted summary of the run.
func (r *Report) Summary() string {
	t := r.Totals()
	return fmt.Sprintf(`Compression Summary (%s):

Files:
		Found: %d
		Compressed: %d
		Resized: %d
		Skipped: %d
		Errors: %d
		Grew: %d

Bytes:
		Before: %s
		After: %s
		Saved: %s

Duration: %v`,
		r.Directory,
		t.FilesFound,
		t.Processed,
		t.Resized,
		t.Skipped,
		t.Failed,
		t.FilesGrown,
		formatBytes(t.BytesBefore),
		formatBytes(t.BytesAfter),
		formatSignedBytes(t.BytesSaved),
		time.Duration(t.DurationMillis)*time.Millisecond)
}

// ErrorSummary returns a summary of failures, capped at ten lines.
func (r *Report) ErrorSummary() string {
	failures := r.Failures()
	if len(failures) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(failures))
	for i, f := range failures {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(failures)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			f.Timestamp.Format("15:04:05"),
			f.Kind,
			f.Filename,
			f.Message)
	}
	return b.String()
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatSignedBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + formatBytes(-bytes)
	}
	return formatBytes(bytes)
}
