package domain

// AnalysisArtifact is the opaque blob-plus-metadata the Analyzer
// Adapter produces and the Uploader ships to the analysis service. The
// raw bytes are whatever the analyzer CLI wrote to its result file;
// Broker never interprets them.
type AnalysisArtifact struct {
	// Path is the on-disk location of the analyzer's structured output,
	// written under the scan's debug bundle directory rather than inside
	// its CloneWorkspace.
	Path string
	// DebugBundlePath is the location of the analyzer's debug bundle, if
	// it produced one.
	DebugBundlePath string
	// Raw is the artifact content, read eagerly so the UploadTask can
	// outlive the CloneWorkspace that produced it (I3).
	Raw []byte
}

// UploadTask is a unit of work handed from the Scan Pipeline to a
// Dispatcher: a reference that has been scanned and is ready to
// upload, plus enough metadata to submit it.
type UploadTask struct {
	Reference Reference
	Artifact  AnalysisArtifact
	Team      string
	Title     string
}
