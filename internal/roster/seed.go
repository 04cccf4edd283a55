package roster

import (
	"time"

	"github.com/dekyc/apiserver/types"
)

// Seed returns the sample roster used for fresh installs and tests.
func Seed() []types.User {
	return []types.User{
		seedUser("U-1001", "Aditi Sharma", "aditi@example.com", types.StatusPending, "2025-08-01", types.DocCitizenship),
		seedUser("U-1002", "Rahul Verma", "rahul@example.com", types.StatusApproved, "2025-07-29", types.DocDrivingLicense),
		seedUser("U-1003", "Neha Singh", "neha@example.com", types.StatusRejected, "2025-07-25", types.DocNationalID),
		seedUser("U-1004", "Vikram Rao", "vikram@example.com", types.StatusPending, "2025-08-02", types.DocPANCard),
		seedUser("U-1005", "Ishita Kapoor", "ishita@example.com", types.StatusApproved, "2025-07-28", types.DocCitizenship),
	}
}

func seedUser(id, name, email string, status types.Status, created string, doc types.DocType) types.User {
	ts, _ := time.Parse(time.DateOnly, created)
	return types.User{
		ID:        id,
		Name:      name,
		Email:     email,
		Role:      types.RoleUser,
		Status:    status,
		DocType:   doc,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}
