package journal

import "time"

// Run outcomes.
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeHalted    = "halted" // cooperative quota halt, not a failure
	OutcomeFailed    = "failed"
)

// Package event actions recorded during a run.
const (
	ActionResolveFailed = "resolve-failed"
	ActionUpToDate      = "up-to-date"
	ActionBuilt         = "built"
	ActionReused        = "reused"
	ActionBuildFailed   = "build-failed"
	ActionUploaded      = "uploaded"
	ActionUploadFailed  = "upload-failed"
	ActionReplaced      = "replaced"
	ActionPurged        = "purged"
)

// Run is one pipeline invocation.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Uploaded   int
	Deleted    int
	Reused     int
	Failed     int
}

// PackageEvent is one per-package outcome within a run.
type PackageEvent struct {
	ID        int64
	RunID     int64
	Package   string
	Version   string
	Action    string
	Detail    string
	CreatedAt time.Time
}
