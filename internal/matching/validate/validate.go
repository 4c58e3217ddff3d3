// Package validate checks request payloads against JSON Schema before they
// reach the Matcher, producing field-level merrors.ValidationError instead
// of ad hoc per-field checks. The teacher imports jsonschema-go in its
// go.mod but (in the retrieved slice) never calls it; here the MCP server
// validates match_shift, respond_to_proposal and search requests with it.
// claim_shift and create_manual_proposal inputs are not schema-validated,
// and CreateOpenShift has no caller.
package validate

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"mcs-mcp/internal/matching/merrors"
)

// CreateOpenShiftRequest is the schema-validated payload for creating an
// open shift from a visit.
type CreateOpenShiftRequest struct {
	VisitID    string `json:"visitId"`
	Priority   string `json:"priority,omitempty"`
	FillByDate string `json:"fillByDate,omitempty"`
}

// MatchShiftRequest is the schema-validated payload for triggering a match.
type MatchShiftRequest struct {
	OpenShiftID     string `json:"openShiftId"`
	ConfigurationID string `json:"configurationId,omitempty"`
	MaxCandidates   int    `json:"maxCandidates,omitempty"`
	AutoPropose     bool   `json:"autoPropose,omitempty"`
}

// RespondToProposalRequest is the schema-validated payload for a
// caregiver's response to a proposal.
type RespondToProposalRequest struct {
	ProposalID        string `json:"proposalId"`
	Accept            bool   `json:"accept"`
	ResponseMethod    string `json:"responseMethod,omitempty"`
	RejectionReason   string `json:"rejectionReason,omitempty"`
	RejectionCategory string `json:"rejectionCategory,omitempty"`
}

// SearchFilterRequest is the schema-validated payload shared by the
// search-open-shifts and search-proposals tools.
type SearchFilterRequest struct {
	OrganizationID string   `json:"organizationId"`
	BranchIDs      []string `json:"branchIds,omitempty"`
	Statuses       []string `json:"statuses,omitempty"`
	PageSize       int      `json:"pageSize,omitempty"`
	PageOffset     int      `json:"pageOffset,omitempty"`
}

// schemaFor lazily derives and resolves a JSON Schema for T via reflection,
// the way jsonschema-go's own jsonschema.For is meant to be used.
func schemaFor[T any]() (*jsonschema.Resolved, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("derive schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return resolved, nil
}

// Validate checks instance (typically a freshly json.Unmarshal'd request
// struct) against T's derived JSON Schema, returning a merrors.ValidationError
// naming the offending request type on failure.
func Validate[T any](instance T) error {
	resolved, err := schemaFor[T]()
	if err != nil {
		// A schema that fails to derive/resolve is a programming error in
		// this package, not a caller mistake — surface it plainly.
		return fmt.Errorf("validate: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return &merrors.ValidationError{
			Field:  fmt.Sprintf("%T", instance),
			Reason: err.Error(),
		}
	}
	return nil
}

// CreateOpenShift validates a CreateOpenShiftRequest and additionally
// requires VisitID, since JSON Schema's "required" alone does not catch an
// empty-string UUID field.
func CreateOpenShift(req CreateOpenShiftRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if req.VisitID == "" {
		return &merrors.ValidationError{Field: "visitId", Reason: "must not be empty"}
	}
	return nil
}

// MatchShift validates a MatchShiftRequest.
func MatchShift(req MatchShiftRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if req.OpenShiftID == "" {
		return &merrors.ValidationError{Field: "openShiftId", Reason: "must not be empty"}
	}
	return nil
}

// RespondToProposal validates a RespondToProposalRequest, requiring a
// rejection reason whenever accept is false.
func RespondToProposal(req RespondToProposalRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if req.ProposalID == "" {
		return &merrors.ValidationError{Field: "proposalId", Reason: "must not be empty"}
	}
	if !req.Accept && req.RejectionReason == "" {
		return &merrors.ValidationError{Field: "rejectionReason", Reason: "required when accept is false"}
	}
	return nil
}

// SearchFilter validates a SearchFilterRequest.
func SearchFilter(req SearchFilterRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if req.OrganizationID == "" {
		return &merrors.ValidationError{Field: "organizationId", Reason: "must not be empty"}
	}
	return nil
}
