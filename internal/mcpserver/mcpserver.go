// Package mcpserver exposes the shift-matching operations as MCP tools over
// stdio, the way the teacher's internal/mcp exposed Jira/forecasting
// operations — but wired against the real SDK (github.com/modelcontextprotocol/go-sdk)
// the teacher already depended on instead of a hand-rolled JSON-RPC loop.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/expirer"
	"mcs-mcp/internal/matching/forecast"
	"mcs-mcp/internal/matching/history"
	"mcs-mcp/internal/matching/matcher"
	"mcs-mcp/internal/matching/store"
	"mcs-mcp/internal/matching/validate"
)

// Server holds the collaborators the tool handlers are closed over.
type Server struct {
	Matcher *matcher.Matcher
	Expirer *expirer.Expirer
	Store   store.ProposalStore
	History *history.Store

	mcp *mcp.Server
}

// New builds the MCP server and registers every tool of spec §6, plus the
// supplemental forecast tool.
func New(m *matcher.Matcher, e *expirer.Expirer, st store.ProposalStore, hist *history.Store) *Server {
	s := &Server{Matcher: m, Expirer: e, Store: st, History: hist}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "care-matcher", Version: "0.1.0"}, nil)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "match_shift",
		Description: "Run the scoring + ranking pipeline for one open shift and, if autoPropose is set, send proposals to the top candidates.",
	}, s.handleMatchShift)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "respond_to_proposal",
		Description: "Record a caregiver's accept or reject response to an assignment proposal.",
	}, s.handleRespondToProposal)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "claim_shift",
		Description: "Let a caregiver self-select an open shift, re-scoring and auto-accepting when their preference profile and score allow it.",
	}, s.handleClaimShift)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_manual_proposal",
		Description: "Coordinator escape hatch: propose a specific caregiver for a shift without running the scorer.",
	}, s.handleCreateManualProposal)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "available_shifts_for_caregiver",
		Description: "List open shifts in a caregiver's branch over the next 7 days that they are eligible for and meet the score threshold on.",
	}, s.handleAvailableShifts)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "expire_stale_proposals",
		Description: "Run one sweep of the proposal expiry job, transitioning past-TTL SENT/VIEWED/PENDING proposals to EXPIRED.",
	}, s.handleExpireStaleProposals)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_open_shifts",
		Description: "Search open shifts by organization, branch, status, and date range.",
	}, s.handleSearchOpenShifts)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_proposals",
		Description: "Search assignment proposals by organization, branch, and status.",
	}, s.handleSearchProposals)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "forecast_fill_probability",
		Description: "Bootstrap-resample an organization's historical proposal outcomes to estimate the probability and percentile timing of a shift filling before a deadline. Supplemental, informational only — never gates match_shift.",
	}, s.handleForecastFillProbability)

	return s
}

// Serve runs the stdio transport loop until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// --- match_shift ---

type matchShiftOutput struct {
	ShiftID          string   `json:"shiftId"`
	MatchingStatus   string   `json:"matchingStatus"`
	EligibleCount    int      `json:"eligibleCount"`
	IneligibleCount  int      `json:"ineligibleCount"`
	CreatedProposals []string `json:"createdProposals"`
}

func (s *Server) handleMatchShift(ctx context.Context, _ *mcp.CallToolRequest, in validate.MatchShiftRequest) (*mcp.CallToolResult, matchShiftOutput, error) {
	if err := validate.MatchShift(in); err != nil {
		return nil, matchShiftOutput{}, err
	}

	shiftID, err := uuid.Parse(in.OpenShiftID)
	if err != nil {
		return nil, matchShiftOutput{}, fmt.Errorf("invalid openShiftId: %w", err)
	}

	req := matcher.MatchRequest{OpenShiftID: shiftID, AutoPropose: in.AutoPropose}
	if in.ConfigurationID != "" {
		cfgID, err := uuid.Parse(in.ConfigurationID)
		if err != nil {
			return nil, matchShiftOutput{}, fmt.Errorf("invalid configurationId: %w", err)
		}
		req.ConfigurationID = &cfgID
	}
	if in.MaxCandidates > 0 {
		req.MaxCandidates = &in.MaxCandidates
	}

	shift, err := s.Store.GetOpenShift(ctx, shiftID)
	if err != nil {
		return nil, matchShiftOutput{}, err
	}
	if shift == nil {
		return nil, matchShiftOutput{}, fmt.Errorf("open shift %s not found", shiftID)
	}

	result, err := s.Matcher.MatchShift(ctx, matcher.AuthContext{OrganizationID: shift.OrganizationID}, req)
	if err != nil {
		return nil, matchShiftOutput{}, err
	}

	out := matchShiftOutput{
		ShiftID:         result.Shift.ID.String(),
		MatchingStatus:  string(result.Shift.MatchingStatus),
		EligibleCount:   result.EligibleCount,
		IneligibleCount: result.IneligibleCount,
	}
	for _, p := range result.CreatedProposals {
		out.CreatedProposals = append(out.CreatedProposals, p.ID.String())
	}
	return nil, out, nil
}

// --- respond_to_proposal ---

type respondOutput struct {
	ProposalID     string `json:"proposalId"`
	ProposalStatus string `json:"proposalStatus"`
}

func (s *Server) handleRespondToProposal(ctx context.Context, _ *mcp.CallToolRequest, in validate.RespondToProposalRequest) (*mcp.CallToolResult, respondOutput, error) {
	if err := validate.RespondToProposal(in); err != nil {
		return nil, respondOutput{}, err
	}
	proposalID, err := uuid.Parse(in.ProposalID)
	if err != nil {
		return nil, respondOutput{}, fmt.Errorf("invalid proposalId: %w", err)
	}

	p, err := s.Matcher.RespondToProposal(ctx, proposalID, matcher.RespondRequest{
		Accept:            in.Accept,
		ResponseMethod:    in.ResponseMethod,
		RejectionReason:   in.RejectionReason,
		RejectionCategory: domain.RejectionCategory(in.RejectionCategory),
	})
	if err != nil {
		return nil, respondOutput{}, err
	}
	return nil, respondOutput{ProposalID: p.ID.String(), ProposalStatus: string(p.ProposalStatus)}, nil
}

// --- claim_shift ---

type claimShiftInput struct {
	CaregiverID string `json:"caregiverId"`
	OpenShiftID string `json:"openShiftId"`
}

func (s *Server) handleClaimShift(ctx context.Context, _ *mcp.CallToolRequest, in claimShiftInput) (*mcp.CallToolResult, respondOutput, error) {
	caregiverID, err := uuid.Parse(in.CaregiverID)
	if err != nil {
		return nil, respondOutput{}, fmt.Errorf("invalid caregiverId: %w", err)
	}
	shiftID, err := uuid.Parse(in.OpenShiftID)
	if err != nil {
		return nil, respondOutput{}, fmt.Errorf("invalid openShiftId: %w", err)
	}
	p, err := s.Matcher.ClaimShift(ctx, caregiverID, shiftID)
	if err != nil {
		return nil, respondOutput{}, err
	}
	return nil, respondOutput{ProposalID: p.ID.String(), ProposalStatus: string(p.ProposalStatus)}, nil
}

// --- create_manual_proposal ---

type manualProposalInput struct {
	OpenShiftID        string `json:"openShiftId"`
	CaregiverID        string `json:"caregiverId"`
	SendNotification   bool   `json:"sendNotification,omitempty"`
	NotificationMethod string `json:"notificationMethod,omitempty"`
}

func (s *Server) handleCreateManualProposal(ctx context.Context, _ *mcp.CallToolRequest, in manualProposalInput) (*mcp.CallToolResult, respondOutput, error) {
	shiftID, err := uuid.Parse(in.OpenShiftID)
	if err != nil {
		return nil, respondOutput{}, fmt.Errorf("invalid openShiftId: %w", err)
	}
	caregiverID, err := uuid.Parse(in.CaregiverID)
	if err != nil {
		return nil, respondOutput{}, fmt.Errorf("invalid caregiverId: %w", err)
	}

	shift, err := s.Store.GetOpenShift(ctx, shiftID)
	if err != nil {
		return nil, respondOutput{}, err
	}
	if shift == nil {
		return nil, respondOutput{}, fmt.Errorf("open shift %s not found", shiftID)
	}

	p, err := s.Matcher.CreateManualProposal(ctx, matcher.AuthContext{OrganizationID: shift.OrganizationID}, shiftID, caregiverID, in.SendNotification, in.NotificationMethod)
	if err != nil {
		return nil, respondOutput{}, err
	}
	return nil, respondOutput{ProposalID: p.ID.String(), ProposalStatus: string(p.ProposalStatus)}, nil
}

// --- available_shifts_for_caregiver ---

type availableShiftsInput struct {
	CaregiverID    string `json:"caregiverId"`
	BranchID       string `json:"branchId"`
	OrganizationID string `json:"organizationId"`
}

type availableShiftsOutput struct {
	Candidates []candidateSummary `json:"candidates"`
}

type candidateSummary struct {
	OpenShiftID  string `json:"openShiftId"`
	OverallScore int    `json:"overallScore"`
	MatchQuality string `json:"matchQuality"`
}

func (s *Server) handleAvailableShifts(ctx context.Context, _ *mcp.CallToolRequest, in availableShiftsInput) (*mcp.CallToolResult, availableShiftsOutput, error) {
	caregiverID, err := uuid.Parse(in.CaregiverID)
	if err != nil {
		return nil, availableShiftsOutput{}, fmt.Errorf("invalid caregiverId: %w", err)
	}
	branchID, err := uuid.Parse(in.BranchID)
	if err != nil {
		return nil, availableShiftsOutput{}, fmt.Errorf("invalid branchId: %w", err)
	}
	orgID, err := uuid.Parse(in.OrganizationID)
	if err != nil {
		return nil, availableShiftsOutput{}, fmt.Errorf("invalid organizationId: %w", err)
	}

	candidates, err := s.Matcher.AvailableShiftsForCaregiver(ctx, caregiverID, branchID, orgID)
	if err != nil {
		return nil, availableShiftsOutput{}, err
	}

	out := availableShiftsOutput{}
	for _, c := range candidates {
		out.Candidates = append(out.Candidates, candidateSummary{
			OpenShiftID:  c.OpenShiftID.String(),
			OverallScore: c.OverallScore,
			MatchQuality: string(c.MatchQuality),
		})
	}
	return nil, out, nil
}

// --- expire_stale_proposals ---

type expireOutput struct {
	ExpiredCount int `json:"expiredCount"`
}

func (s *Server) handleExpireStaleProposals(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, expireOutput, error) {
	count, err := s.Expirer.Sweep(ctx)
	if err != nil {
		return nil, expireOutput{}, err
	}
	log.Info().Int("expired", count).Msg("proposal expiry sweep completed via MCP tool")
	return nil, expireOutput{ExpiredCount: count}, nil
}

// --- search_open_shifts / search_proposals ---

type searchResultOutput struct {
	TotalCount int      `json:"totalCount"`
	IDs        []string `json:"ids"`
}

func (s *Server) handleSearchOpenShifts(ctx context.Context, _ *mcp.CallToolRequest, in validate.SearchFilterRequest) (*mcp.CallToolResult, searchResultOutput, error) {
	if err := validate.SearchFilter(in); err != nil {
		return nil, searchResultOutput{}, err
	}
	orgID, err := uuid.Parse(in.OrganizationID)
	if err != nil {
		return nil, searchResultOutput{}, fmt.Errorf("invalid organizationId: %w", err)
	}

	filter := domain.OpenShiftFilter{OrganizationID: orgID}
	for _, st := range in.Statuses {
		filter.MatchingStatus = append(filter.MatchingStatus, domain.MatchingStatus(st))
	}

	page, err := s.Store.SearchOpenShifts(ctx, filter, pagination(in.PageSize, in.PageOffset))
	if err != nil {
		return nil, searchResultOutput{}, err
	}
	out := searchResultOutput{TotalCount: page.TotalCount}
	for _, shift := range page.Items {
		out.IDs = append(out.IDs, shift.ID.String())
	}
	return nil, out, nil
}

func (s *Server) handleSearchProposals(ctx context.Context, _ *mcp.CallToolRequest, in validate.SearchFilterRequest) (*mcp.CallToolResult, searchResultOutput, error) {
	if err := validate.SearchFilter(in); err != nil {
		return nil, searchResultOutput{}, err
	}
	orgID, err := uuid.Parse(in.OrganizationID)
	if err != nil {
		return nil, searchResultOutput{}, fmt.Errorf("invalid organizationId: %w", err)
	}

	filter := domain.ProposalFilter{OrganizationID: orgID}
	for _, st := range in.Statuses {
		filter.ProposalStatus = append(filter.ProposalStatus, domain.ProposalStatus(st))
	}

	page, err := s.Store.SearchProposals(ctx, filter, pagination(in.PageSize, in.PageOffset))
	if err != nil {
		return nil, searchResultOutput{}, err
	}
	out := searchResultOutput{TotalCount: page.TotalCount}
	for _, p := range page.Items {
		out.IDs = append(out.IDs, p.ID.String())
	}
	return nil, out, nil
}

func pagination(pageSize, pageOffset int) domain.Pagination {
	limit := pageSize
	if limit <= 0 {
		limit = 25
	}
	page := pageOffset/limit + 1
	return domain.Pagination{Page: page, Limit: limit}
}

// --- forecast_fill_probability ---

type forecastInput struct {
	OrganizationID    string  `json:"organizationId"`
	FillByDateMinutes float64 `json:"fillByDateMinutes,omitempty"`
	Trials            int     `json:"trials,omitempty"`
}

type forecastOutput struct {
	FillProbability float64              `json:"fillProbability"`
	SampleSize      int                  `json:"sampleSize"`
	MinutesToFill   forecast.Percentiles `json:"minutesToFill"`
}

func (s *Server) handleForecastFillProbability(ctx context.Context, _ *mcp.CallToolRequest, in forecastInput) (*mcp.CallToolResult, forecastOutput, error) {
	orgID, err := uuid.Parse(in.OrganizationID)
	if err != nil {
		return nil, forecastOutput{}, fmt.Errorf("invalid organizationId: %w", err)
	}

	var rows []domain.MatchHistory
	for _, row := range s.History.All(ctx) {
		if row.OrganizationID == orgID {
			rows = append(rows, row)
		}
	}

	result := forecast.EstimateFillProbability(rows, in.FillByDateMinutes, in.Trials)
	return nil, forecastOutput{
		FillProbability: result.FillProbability,
		SampleSize:      result.SampleSize,
		MinutesToFill:   result.MinutesToFill,
	}, nil
}
