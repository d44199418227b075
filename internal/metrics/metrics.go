package metrics

import (
	"fmt"
	"math"

	"github.com/Alias1177/ProfitPredictor/models"
	"github.com/google/cel-go/cel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Market tier thresholds on predicted profit
const (
	UnicornThreshold = 500_000_000.0
	TierOneThreshold = 100_000_000.0
)

// DefaultRiskRule is used when no rule is configured
const DefaultRiskRule = models.DefaultRiskRule

// Engine derives executive metrics from a predicted profit. The risk tier is
// decided by a CEL expression compiled once in NewEngine; an Engine is safe
// for concurrent use.
type Engine struct {
	rule    string
	program cel.Program
	logger  zerolog.Logger
}

// NewEngine compiles rule over the variables roi_percent (double),
// opex_ratio (double) and opex_defined (bool). The expression must be boolean.
// An empty rule selects DefaultRiskRule.
func NewEngine(rule string) (*Engine, error) {
	if rule == "" {
		rule = DefaultRiskRule
	}

	env, err := cel.NewEnv(
		cel.Variable("roi_percent", cel.DoubleType),
		cel.Variable("opex_ratio", cel.DoubleType),
		cel.Variable("opex_defined", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile risk rule: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("risk rule must be boolean, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	return &Engine{
		rule:    rule,
		program: prg,
		logger:  log.With().Str("component", "metrics").Logger(),
	}, nil
}

// Rule returns the risk expression the engine was built with
func (e *Engine) Rule() string {
	return e.rule
}

// Derive computes every metric for one prediction. comparison is the
// optimized re-run and is nil when only one model was queried.
func (e *Engine) Derive(final float64, comparison *float64, input models.PredictionInput) models.DerivedMetrics {
	total := input.TotalSpend()
	out := models.DerivedMetrics{
		TotalSpend:     finite(total),
		ROIPercent:     ROIPercent(final, input),
		ImpliedRevenue: finite(final + total),
		MarketTier:     MarketTier(final),
		OpexRatio:      Opex(input),
	}
	out.EBITDAMarginPercent = EBITDAMarginPercent(final, total)
	out.RiskTier = e.riskTier(out.ROIPercent, out.OpexRatio)
	if comparison != nil {
		penalty := NoisePenalty(final, *comparison)
		out.NoisePenalty = &penalty
	}
	return out
}

func (e *Engine) riskTier(roi float64, opex models.OpexRatio) string {
	val, _, err := e.program.Eval(map[string]any{
		"roi_percent":  roi,
		"opex_ratio":   opex.Value,
		"opex_defined": opex.Defined,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("rule", e.rule).Msg("Risk rule evaluation failed, using built-in rule")
		return builtinRiskTier(roi, opex)
	}
	if high, ok := val.Value().(bool); ok && high {
		return models.RiskHigh
	}
	return models.RiskOptimized
}

func builtinRiskTier(roi float64, opex models.OpexRatio) string {
	if (opex.Defined && opex.Value > 1.0) || roi < 0 {
		return models.RiskHigh
	}
	return models.RiskOptimized
}

// ROIPercent is the return on total spend, falling back to R&D spend when
// the total is zero. It is 0 when there is no spend at all. A total that
// overflows yields -100, the limit of the ratio.
func ROIPercent(profit float64, input models.PredictionInput) float64 {
	total := input.TotalSpend()
	switch {
	case total > 0:
		return finite(profit/total*100 - 100)
	case input.RDSpend > 0:
		return finite(profit/input.RDSpend*100 - 100)
	}
	return 0
}

// EBITDAMarginPercent treats profit + spend as implied revenue
func EBITDAMarginPercent(profit, totalSpend float64) float64 {
	revenue := profit + totalSpend
	if revenue <= 0 {
		return 0
	}
	return finite(profit / revenue * 100)
}

// Opex returns (admin + marketing) / rd. The ratio is undefined without R&D
// spend; undefined and zero ratios are both labelled LEAN.
func Opex(input models.PredictionInput) models.OpexRatio {
	if input.RDSpend <= 0 {
		return models.OpexRatio{Label: models.OpexLean}
	}
	v := finite(input.AdminSpend/input.RDSpend + input.MarketingSpend/input.RDSpend)
	r := models.OpexRatio{Value: v, Defined: true, Label: fmt.Sprintf("%.2f", v)}
	if v == 0 {
		r.Label = models.OpexLean
	}
	return r
}

// MarketTier buckets profit; a value exactly on a threshold stays in the
// lower tier.
func MarketTier(profit float64) string {
	switch {
	case profit > UnicornThreshold:
		return models.MarketUnicorn
	case profit > TierOneThreshold:
		return models.MarketTierOne
	}
	return models.MarketEmerging
}

// NoisePenalty is the optimized prediction minus the all-features baseline
func NoisePenalty(baseline, optimized float64) float64 {
	return finite(optimized - baseline)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var defaultEngine = mustEngine(DefaultRiskRule)

func mustEngine(rule string) *Engine {
	e, err := NewEngine(rule)
	if err != nil {
		panic(err)
	}
	return e
}

// Default returns the engine built from DefaultRiskRule
func Default() *Engine {
	return defaultEngine
}

// Derive runs the default engine
func Derive(final float64, comparison *float64, input models.PredictionInput) models.DerivedMetrics {
	return defaultEngine.Derive(final, comparison, input)
}
