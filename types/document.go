package types

import "time"

// DocumentStatus is the review state of an uploaded document.
type DocumentStatus string

// Supported document review states.
const (
	DocumentPending  DocumentStatus = "pending"
	DocumentVerified DocumentStatus = "verified"
	DocumentRejected DocumentStatus = "rejected"
)

// Valid reports whether s is a known review state.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentPending, DocumentVerified, DocumentRejected:
		return true
	default:
		return false
	}
}

// Document is an identity document uploaded by a user.
// The file itself lives in object storage under ObjectKey.
type Document struct {
	// ID is the unique identifier of the document.
	ID string `json:"id" db:"id"`

	// UserID identifies the owner of the document.
	UserID string `json:"user_id" db:"user_id"`

	// Type is the kind of document (citizenship, pan_card, ...).
	Type DocType `json:"type" db:"type"`

	// Filename is the original name of the uploaded file.
	Filename string `json:"filename" db:"filename"`

	// ContentType is the MIME type of the stored object.
	ContentType string `json:"content_type" db:"content_type"`

	// Size is the object size in bytes.
	Size int64 `json:"size" db:"size"`

	// ObjectKey is the key of the file in object storage.
	ObjectKey string `json:"-" db:"object_key"`

	// SHA256 is the hex-encoded SHA-256 of the file contents.
	SHA256 string `json:"sha256" db:"sha256"`

	// Status is the review state of the document.
	Status DocumentStatus `json:"status" db:"status"`

	// UploadedAt is when the document was received.
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`

	// VerifiedAt is set while the document is verified and cleared when it
	// goes back to pending or is rejected.
	VerifiedAt *time.Time `json:"verified_at" db:"verified_at"`
}

// DocumentStats summarises a user's documents by review state.
type DocumentStats struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

// ChecklistItem is an entry of the per-user document checklist shown to admins.
type ChecklistItem struct {
	Key      DocType `json:"key"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
}
