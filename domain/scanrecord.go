package domain

import "time"

// ScanRecord is inserted once per successful upload. Its existence for
// a given (integration, kind, name, revision) tuple is the "already
// scanned" predicate Discovery diffs against (I1).
type ScanRecord struct {
	IntegrationID string
	Kind          RefKind
	Name          string
	Revision      string
	UploadedAt    time.Time
}

// IntegrationToggleState is the last observed (import_branches,
// import_tags) pair for an integration, used to detect a toggle flip
// between poll cycles.
type IntegrationToggleState struct {
	IntegrationID  string
	ImportBranches bool
	ImportTags     bool
}
