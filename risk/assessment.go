package risk

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApprovalStatus is the aggregated verdict over a proposal's violations.
type ApprovalStatus int

const (
	Approved ApprovalStatus = iota
	ApprovedWithWarnings
	RequiresReduction
	Rejected
	Blocked
)

func (s ApprovalStatus) String() string {
	switch s {
	case Approved:
		return "APPROVED"
	case ApprovedWithWarnings:
		return "APPROVED_WITH_WARNINGS"
	case RequiresReduction:
		return "REQUIRES_REDUCTION"
	case Rejected:
		return "REJECTED"
	case Blocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

func (s ApprovalStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ProtocolDecision is the engine's final word to the orchestrator.
type ProtocolDecision int

const (
	DecisionApproved ProtocolDecision = iota
	DecisionApprovedWithWarnings
	DecisionRejected
	// DecisionAssessmentFailed means the assessment itself is untrusted
	// (a rule panicked, sizing overflowed); distinct from a clean rejection.
	DecisionAssessmentFailed
)

func (d ProtocolDecision) String() string {
	switch d {
	case DecisionApproved:
		return "APPROVED"
	case DecisionApprovedWithWarnings:
		return "APPROVED_WITH_WARNINGS"
	case DecisionRejected:
		return "REJECTED"
	case DecisionAssessmentFailed:
		return "ASSESSMENT_FAILED"
	default:
		return "UNKNOWN"
	}
}

// RiskAssessment is the immutable record produced by one engine run.
type RiskAssessment struct {
	AssessmentID    string          `json:"assessment_id"`
	ProposalID      string          `json:"proposal_id"`
	PositionSize    decimal.Decimal `json:"position_size"`
	RiskAmount      decimal.Decimal `json:"risk_amount"`
	RiskPercentage  decimal.Decimal `json:"risk_percentage"`
	RewardRiskRatio *decimal.Decimal `json:"reward_risk_ratio,omitempty"`
	PortfolioImpact decimal.Decimal `json:"portfolio_impact"`
	Violations      []Violation     `json:"violations"`
	ApprovalStatus  ApprovalStatus  `json:"approval_status"`
	CreatedAt       time.Time       `json:"created_at"`
	Reasoning       string          `json:"reasoning,omitempty"`
}

// NewRiskAssessment starts an assessment at Approved; AddViolation walks the
// status down as violations land.
func NewRiskAssessment(proposalID string, positionSize, riskAmount, riskPct decimal.Decimal, rr *decimal.Decimal, portfolioImpact decimal.Decimal) *RiskAssessment {
	return &RiskAssessment{
		AssessmentID:    uuid.NewString(),
		ProposalID:      proposalID,
		PositionSize:    positionSize,
		RiskAmount:      riskAmount,
		RiskPercentage:  riskPct,
		RewardRiskRatio: rr,
		PortfolioImpact: portfolioImpact,
		ApprovalStatus:  Approved,
		CreatedAt:       time.Now().UTC(),
	}
}

// AddViolation records v and joins its severity into the approval status.
// The join is monotone, order-independent and idempotent: the status only
// ever moves toward Blocked.
func (a *RiskAssessment) AddViolation(v Violation) {
	a.Violations = append(a.Violations, v)
	mapped := statusForSeverity(v.Severity)
	if mapped > a.ApprovalStatus {
		a.ApprovalStatus = mapped
	}
}

func statusForSeverity(s Severity) ApprovalStatus {
	switch s {
	case SeverityWarning:
		return ApprovedWithWarnings
	case SeverityHigh:
		return RequiresReduction
	case SeverityCritical:
		return Rejected
	case SeverityBlocking:
		return Blocked
	default:
		return Approved
	}
}

// IsApproved reports whether the trade may proceed to Act.
func (a *RiskAssessment) IsApproved() bool {
	return a.ApprovalStatus == Approved || a.ApprovalStatus == ApprovedWithWarnings
}

// IsRejected reports a terminal refusal.
func (a *RiskAssessment) IsRejected() bool {
	return a.ApprovalStatus == Rejected || a.ApprovalStatus == Blocked
}

// DominantViolation is the worst violation on record, or nil when clean.
func (a *RiskAssessment) DominantViolation() *Violation {
	var worst *Violation
	for i := range a.Violations {
		if worst == nil || a.Violations[i].Severity > worst.Severity {
			worst = &a.Violations[i]
		}
	}
	return worst
}
