package types

import "time"

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Status is the KYC verification state of a user.
type Status string

// Supported KYC statuses.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every KYC status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// DocType identifies the primary identity document a user registered with.
type DocType string

// Supported document types.
const (
	DocCitizenship    DocType = "citizenship"
	DocDrivingLicense DocType = "driving_license"
	DocNationalID     DocType = "national_id"
	DocPANCard        DocType = "pan_card"
	DocCertificate    DocType = "certificate"
)

// DocTypes lists the document types a roster record may carry.
var DocTypes = []DocType{DocCitizenship, DocDrivingLicense, DocNationalID, DocPANCard}

// Valid reports whether d may appear on a roster record.
func (d DocType) Valid() bool {
	switch d {
	case DocCitizenship, DocDrivingLicense, DocNationalID, DocPANCard:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-readable name of the document type.
func (d DocType) DisplayName() string {
	switch d {
	case DocCitizenship:
		return "Citizenship Certificate"
	case DocDrivingLicense:
		return "Driving License"
	case DocNationalID:
		return "National Identity Document"
	case DocPANCard:
		return "PAN Card"
	case DocCertificate:
		return "Certificate"
	default:
		return string(d)
	}
}

// User represents an account in the portal and a row of the admin roster.
type User struct {
	// ID is the unique identifier of the user, e.g. "U-1001".
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address and login name.
	Email string `json:"email" db:"email"`

	// Phone is the contact number given at registration.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Role indicates the user's authorization level ("admin", "user").
	Role string `json:"role" db:"role"`

	// Status is the KYC verification status of the user.
	Status Status `json:"status" db:"status"`

	// DocType is the identity document the user is verified against.
	DocType DocType `json:"doc_type" db:"doc_type"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
