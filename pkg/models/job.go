// Package models defines the data types shared across coderunner's
// admission API, job queue, and worker pool.
package models

import "time"

// JobState is one of the states in the job lifecycle state machine.
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateDelayed   JobState = "delayed"
	StateStalled   JobState = "stalled"
)

// Submission is the caller-supplied request body for POST /run.
type Submission struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Job is the durable, queue-resident record of one submission.
type Job struct {
	ID        string    `json:"jobId"`
	Language  string    `json:"language"`
	Code      string    `json:"-"`
	State     JobState  `json:"state"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// LanguageDescriptor is one immutable catalog entry (C1).
type LanguageDescriptor struct {
	Tag                  string
	Ext                  string
	Image                string
	CommandTemplate      string
	TreatStderrAsFailure bool

	// Per-language resource overrides; zero value means "use the
	// sandbox driver's global default".
	MemoryLimitMB int64
	CPULimit      float64
	PidsLimit     int64
}

// ArtifactSet enumerates the filesystem paths produced to execute one
// job. Every path is rooted under the job's own workspace subdirectory.
type ArtifactSet struct {
	JobID      string
	Dir        string // <workspace>/<jobID>
	SourcePath string
	ClassFile  string // Java only
	BinaryPath string // C/C++ only
}

// Paths returns every artifact path that should be removed on cleanup.
func (a ArtifactSet) Paths() []string {
	paths := []string{a.SourcePath}
	if a.ClassFile != "" {
		paths = append(paths, a.ClassFile)
	}
	if a.BinaryPath != "" {
		paths = append(paths, a.BinaryPath)
	}
	return paths
}
