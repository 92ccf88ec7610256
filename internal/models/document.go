package models

import "time"

// Change types recorded on a document version.
const (
	ChangeCreated  = "created"
	ChangeModified = "modified"
)

// Document contexts a version chain may belong to.
const (
	TenderContext    = "tender"
	BidContext       = "bid"
	ComplaintContext = "complaint"
)

// DocumentVersion is one immutable revision in a document's version chain.
// The binary itself lives in blob storage; a version only records metadata.
// IsCurrent is derived (version with the highest number), never stored.
type DocumentVersion struct {
	ID             string          `json:"id"`
	DocumentID     string          `json:"documentId"`
	VersionNumber  int             `json:"versionNumber"`
	Name           string          `json:"name"`
	URL            string          `json:"url"`
	StoragePath    string          `json:"storagePath"`
	Size           int64           `json:"size"`
	ContentType    string          `json:"type"`
	Context        string          `json:"context"`
	ContextID      string          `json:"contextId"`
	UploadedBy     string          `json:"uploadedBy"`
	UploadedByName string          `json:"uploadedByName"`
	UploadedAt     time.Time       `json:"uploadedAt"`
	ChangeReason   string          `json:"changeReason,omitempty"`
	Changes        []VersionChange `json:"changes"`
	IsCurrent      bool            `json:"isCurrent"`
}

// VersionChange is one field-level delta between two consecutive versions.
type VersionChange struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue,omitempty"`
	NewValue string `json:"newValue,omitempty"`
	Type     string `json:"type"`
}

// VersionData is the metadata for a new revision of a document.
type VersionData struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
	Size        int64  `json:"size"`
	ContentType string `json:"type"`
}

// VersionComparison is the result of comparing two versions of a document.
type VersionComparison struct {
	HasChanges   bool            `json:"hasChanges"`
	Differences  []VersionChange `json:"differences"`
	SizeDelta    string          `json:"sizeDelta,omitempty"`
	SizeDeltaPct string          `json:"sizeDeltaPct,omitempty"`
}

// ChangeHistoryEntry is one flattened line in a document's change history.
type ChangeHistoryEntry struct {
	Version      int       `json:"version"`
	Timestamp    time.Time `json:"timestamp"`
	User         string    `json:"user"`
	UserID       string    `json:"userId"`
	Change       string    `json:"change"`
	ChangeReason string    `json:"changeReason,omitempty"`
}
