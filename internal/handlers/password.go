package handlers

import (
	"net/http"

	"github.com/dekyc/apiserver/internal/strength"
)

type StrengthRequest struct {
	Password string `json:"password"`
}

// PasswordStrength scores a candidate password for the registration meter.
// The password is neither stored nor logged.
func PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req StrengthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	writeJSON(w, http.StatusOK, strength.Evaluate(req.Password))
}
