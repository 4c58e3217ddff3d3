package domain

import "time"

// SortOrder is the pagination sort direction (spec §6).
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Pagination is the common paging envelope for search operations (spec §6):
// page >= 1, limit in [1,100], sortOrder defaults to desc.
type Pagination struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
}

// Normalize fills in the spec's defaults (page=1, limit=20, sortOrder=desc)
// and clamps limit to [1,100].
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.SortOrder == "" {
		p.SortOrder = SortDescending
	}
	return p
}

// Offset returns the zero-based row offset for this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PagedResult wraps a page of results with enough metadata to compute
// whether further pages exist.
type PagedResult[T any] struct {
	Items      []T
	Page       int
	Limit      int
	TotalCount int
}

// HasMore reports whether additional pages remain.
func (r PagedResult[T]) HasMore() bool {
	return r.Page*r.Limit < r.TotalCount
}

// OpenShiftFilter is the search predicate for open shifts (spec §6).
type OpenShiftFilter struct {
	OrganizationID OrganizationID
	BranchID       *BranchID
	BranchIDs      []BranchID
	ClientID       *ClientID
	DateFrom       *time.Time
	DateTo         *time.Time
	Priority       []Priority
	MatchingStatus []MatchingStatus
	IsUrgent       *bool
	ServiceTypeID  *string
}

// ProposalFilter is the analogous search predicate for proposals.
type ProposalFilter struct {
	OrganizationID OrganizationID
	BranchID       *BranchID
	BranchIDs      []BranchID
	OpenShiftID    *OpenShiftID
	CaregiverID    *CaregiverID
	ProposalStatus []ProposalStatus
	DateFrom       *time.Time
	DateTo         *time.Time
}
