package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/num"
)

// Severity ranks how badly a rule was violated. Higher is worse.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityHigh
	SeverityCritical
	SeverityBlocking
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	case SeverityBlocking:
		return "BLOCKING"
	default:
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Violation is one rule's objection to a proposal. Violations are data, not
// errors: they ride inside a RiskAssessment and drive its approval status.
type Violation struct {
	RuleName        string          `json:"rule_name"`
	Severity        Severity        `json:"severity"`
	Description     string          `json:"description"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	LimitValue      decimal.Decimal `json:"limit_value"`
	SuggestedAction string          `json:"suggested_action"`
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s (current %s, limit %s)",
		v.Severity, v.RuleName, v.Description,
		num.Canonical(v.CurrentValue), num.Canonical(v.LimitValue))
}
