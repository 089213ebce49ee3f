package risk

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/num"
	"github.com/web3guy0/tradegate/sizing"
	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK ENGINE - runs the rule set and produces one assessment per proposal
// ═══════════════════════════════════════════════════════════════════════════════

// Engine evaluates proposals against the registered rule set using a single
// read-consistent snapshot of portfolio state per assessment.
type Engine struct {
	calc   *sizing.Calculator
	limits ProtocolLimits
	rules  []Rule
	state  StateProvider
	// failFast stops after the first Blocking violation. Off by default:
	// collecting every violation maximizes audit value.
	failFast bool
}

// NewEngine builds an engine with the required rule set for the given limits.
func NewEngine(limits ProtocolLimits, state StateProvider) *Engine {
	e := &Engine{
		calc:   sizing.NewCalculator(),
		limits: limits,
		state:  state,
	}
	for _, r := range []Rule{
		ValidSymbolRule{},
		StopLossDirectionRule{},
		TakeProfitDirectionRule{},
		MaxTradeRiskRule{Limits: limits},
		ConsecutiveLossRule{Limits: limits},
		MaxPortfolioRiskRule{Limits: limits},
		MaxOpenPositionsRule{Limits: limits},
		DailyLossLimitRule{Limits: limits},
		MinRewardRiskRatioRule{Limits: limits},
		MinTradeRiskRule{Limits: limits},
	} {
		e.rules = append(e.rules, r)
	}
	e.sortRules()
	return e
}

// WithCalculator swaps the sizing calculator (precision or guard overrides).
func (e *Engine) WithCalculator(c *sizing.Calculator) *Engine {
	e.calc = c
	return e
}

// SetFailFast stops rule evaluation at the first Blocking violation.
func (e *Engine) SetFailFast(on bool) { e.failFast = on }

// AddRule registers an extra rule and re-sorts by priority.
func (e *Engine) AddRule(r Rule) {
	e.rules = append(e.rules, r)
	e.sortRules()
}

func (e *Engine) sortRules() {
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority() < e.rules[j].Priority()
	})
}

// Limits returns the engine's immutable limit bundle.
func (e *Engine) Limits() ProtocolLimits { return e.limits }

// Assess runs the full rule set over the proposal and returns the
// assessment plus the decision derived from it. A rule panic or a sizing
// failure yields DecisionAssessmentFailed: the assessment itself is
// untrusted, which is not the same thing as a rejection.
func (e *Engine) Assess(p *types.TradeProposal) (a *RiskAssessment, decision ProtocolDecision) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("proposal", p.ID).Msg("Rule panicked during assessment")
			a = e.failedAssessment(p, fmt.Sprintf("rule panicked: %v", r))
			decision = DecisionAssessmentFailed
		}
	}()

	view := e.state.View()

	var guardViolation *Violation
	positionSize, err := e.positionSize(p)
	if err != nil {
		// The cash-equity guard is a protocol limit, not a broken
		// calculation: record it as a Blocking violation and keep assessing
		// so the trader sees every limit the setup breaks. Anything else
		// (overflow, invalid result) means the assessment is untrusted.
		var exceeds *sizing.ExceedsAccountBalanceError
		if !errors.As(err, &exceeds) {
			log.Error().Err(err).Str("proposal", p.ID).Msg("Position sizing failed during assessment")
			a = e.failedAssessment(p, fmt.Sprintf("position sizing failed: %v", err))
			return a, DecisionAssessmentFailed
		}
		guardViolation = &Violation{
			RuleName:        "AccountBalanceGuard",
			Severity:        SeverityBlocking,
			Description:     fmt.Sprintf("position value %s exceeds account equity %s", num.Canonical(exceeds.PositionValue), num.Canonical(exceeds.Equity)),
			CurrentValue:    exceeds.PositionValue,
			LimitValue:      exceeds.Equity,
			SuggestedAction: "reduce trade risk or widen the stop",
		}
	}

	riskAmount := positionSize.Value().Mul(p.RiskDistance())
	var rr *decimal.Decimal
	if ratio, ok := p.RiskRewardRatio(); ok {
		rr = &ratio
	}
	portfolioImpact := view.TotalPortfolioRisk.Add(p.Risk.Value())

	a = NewRiskAssessment(p.ID, positionSize.Value(), riskAmount, p.Risk.Value(), rr, portfolioImpact)
	if guardViolation != nil {
		a.AddViolation(*guardViolation)
	}

	for _, rule := range e.rules {
		v := rule.Assess(p, view)
		if v == nil {
			continue
		}
		log.Debug().
			Str("rule", rule.Name()).
			Str("severity", v.Severity.String()).
			Str("proposal", p.ID).
			Msg("Rule violated")
		a.AddViolation(*v)
		if e.failFast && v.Severity == SeverityBlocking {
			break
		}
	}

	a.Reasoning = e.reasoning(p, a)
	decision = decisionFor(a)

	log.Info().
		Str("proposal", p.ID).
		Str("status", a.ApprovalStatus.String()).
		Int("violations", len(a.Violations)).
		Msg("Risk assessment completed")

	return a, decision
}

// positionSize runs the long-oriented kernel, mirroring short setups about
// their entry so the risk distance and balance guard are preserved.
func (e *Engine) positionSize(p *types.TradeProposal) (types.PositionSize, error) {
	entry, stop := p.Entry, p.Stop
	if p.Side == types.Short {
		mirrored := entry.Value().Sub(p.Stop.Value().Sub(entry.Value()))
		m, err := types.NewPricePoint(mirrored)
		if err != nil {
			return types.PositionSize{}, err
		}
		stop = m
	}
	return e.calc.CalculatePositionSize(p.AccountEquity, p.Risk, entry, stop)
}

func (e *Engine) failedAssessment(p *types.TradeProposal, detail string) *RiskAssessment {
	a := NewRiskAssessment(p.ID, decimal.Zero, decimal.Zero, p.Risk.Value(), nil, decimal.Zero)
	a.AddViolation(Violation{
		RuleName:        "AssessmentFailure",
		Severity:        SeverityBlocking,
		Description:     detail,
		CurrentValue:    decimal.Zero,
		LimitValue:      decimal.NewFromInt(1),
		SuggestedAction: "check the proposal parameters and engine state",
	})
	a.Reasoning = "assessment failed: " + detail
	return a
}

func decisionFor(a *RiskAssessment) ProtocolDecision {
	switch a.ApprovalStatus {
	case Approved:
		return DecisionApproved
	case ApprovedWithWarnings:
		return DecisionApprovedWithWarnings
	default:
		return DecisionRejected
	}
}

// reasoning renders the human-readable summary carried on the assessment:
// the approved parameters, or the dominant violation.
func (e *Engine) reasoning(p *types.TradeProposal, a *RiskAssessment) string {
	switch a.ApprovalStatus {
	case Approved:
		return fmt.Sprintf("approved: %s %s size %s risking %s (%s%% of equity)",
			p.Side, p.Symbol,
			num.Canonical(a.PositionSize),
			a.RiskAmount.StringFixed(2),
			pct(a.RiskPercentage))
	case ApprovedWithWarnings:
		var warns []string
		for _, v := range a.Violations {
			warns = append(warns, v.Description)
		}
		return fmt.Sprintf("approved with warnings: %s", strings.Join(warns, "; "))
	default:
		dominant := a.DominantViolation()
		if dominant == nil {
			return "rejected"
		}
		// Lead with the dominant violation but keep the rest on record;
		// audit readers want the whole picture.
		var others []string
		for _, v := range a.Violations {
			if v.RuleName != dominant.RuleName {
				others = append(others, v.Description)
			}
		}
		reason := fmt.Sprintf("rejected by %s: %s", dominant.RuleName, dominant.Description)
		if len(others) > 0 {
			reason += "; also: " + strings.Join(others, "; ")
		}
		return reason
	}
}
