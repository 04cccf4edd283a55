// Package roster filters and aggregates the admin user roster.
//
// All functions are pure: they never mutate the slice they are given, and
// derived views (tally, filtered list) are recomputed from the current
// roster on every call.
package roster

import (
	"iter"
	"slices"
	"strings"

	"github.com/dekyc/apiserver/types"
)

// All matches every value of a status or document-type filter.
const All = "all"

// Filter selects roster records.
type Filter struct {
	// Query is matched case-insensitively against id, name and email.
	Query string `json:"query"`

	// Status is a types.Status value or "all". Empty means "all".
	Status string `json:"status"`

	// DocType is a types.DocType value or "all". Empty means "all".
	DocType string `json:"doc_type"`
}

// StatusTally holds per-status counts over a roster.
type StatusTally struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Tally counts records per status in a single pass.
func Tally(records []types.User) StatusTally {
	var t StatusTally
	for _, r := range records {
		t.Total++
		switch r.Status {
		case types.StatusPending:
			t.Pending++
		case types.StatusApproved:
			t.Approved++
		case types.StatusRejected:
			t.Rejected++
		}
	}
	return t
}

// Match reports whether a single record satisfies f.
func (f Filter) Match(r types.User) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q != "" &&
		!strings.Contains(strings.ToLower(r.Name), q) &&
		!strings.Contains(strings.ToLower(r.Email), q) &&
		!strings.Contains(strings.ToLower(r.ID), q) {
		return false
	}
	if !isAll(f.Status) && string(r.Status) != f.Status {
		return false
	}
	if !isAll(f.DocType) && string(r.DocType) != f.DocType {
		return false
	}
	return true
}

// Select lazily yields the records matching f, in roster order.
func Select(records []types.User, f Filter) iter.Seq[types.User] {
	return func(yield func(types.User) bool) {
		for _, r := range records {
			if !f.Match(r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Collect materialises Select into a new slice.
func Collect(records []types.User, f Filter) []types.User {
	out := slices.Collect(Select(records, f))
	if out == nil {
		out = []types.User{}
	}
	return out
}

// SetStatus returns a copy of records where the record with the given id
// carries status. Other records and their order are untouched. An unknown
// id yields an unchanged copy.
func SetStatus(records []types.User, id string, status types.Status) []types.User {
	out := slices.Clone(records)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = status
		}
	}
	return out
}

func isAll(v string) bool {
	return v == "" || v == All
}
