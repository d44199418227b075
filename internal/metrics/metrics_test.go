package metrics

import (
	"math"
	"testing"

	"github.com/Alias1177/ProfitPredictor/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDeriveOptimizedScenario(t *testing.T) {
	input := models.PredictionInput{RDSpend: 1000, Region: "New York", Variant: models.VariantOptimized}

	got := Derive(2000, nil, input)

	if !almostEqual(got.ROIPercent, 100) {
		t.Errorf("ROIPercent = %v, want 100", got.ROIPercent)
	}
	if !almostEqual(got.EBITDAMarginPercent, 2000.0/3000.0*100) {
		t.Errorf("EBITDAMarginPercent = %v, want 66.67", got.EBITDAMarginPercent)
	}
	if !got.OpexRatio.Defined || got.OpexRatio.Value != 0 || got.OpexRatio.Label != models.OpexLean {
		t.Errorf("OpexRatio = %+v, want defined 0 LEAN", got.OpexRatio)
	}
	if got.RiskTier != models.RiskOptimized {
		t.Errorf("RiskTier = %q, want %q", got.RiskTier, models.RiskOptimized)
	}
	if got.MarketTier != models.MarketEmerging {
		t.Errorf("MarketTier = %q, want %q", got.MarketTier, models.MarketEmerging)
	}
	if got.NoisePenalty != nil {
		t.Errorf("NoisePenalty = %v, want nil", *got.NoisePenalty)
	}
	if got.TotalSpend != 1000 || got.ImpliedRevenue != 3000 {
		t.Errorf("TotalSpend/ImpliedRevenue = %v/%v, want 1000/3000", got.TotalSpend, got.ImpliedRevenue)
	}
}

func TestDeriveAllFeaturesScenario(t *testing.T) {
	input := models.PredictionInput{
		RDSpend: 100, AdminSpend: 150, MarketingSpend: 50,
		Region: "Florida", Variant: models.VariantAllFeatures,
	}
	comparison := 150.0

	got := Derive(100, &comparison, input)

	if !almostEqual(got.OpexRatio.Value, 2) || got.OpexRatio.Label != "2.00" {
		t.Errorf("OpexRatio = %+v, want 2.00", got.OpexRatio)
	}
	if got.RiskTier != models.RiskHigh {
		t.Errorf("RiskTier = %q, want %q", got.RiskTier, models.RiskHigh)
	}
	if got.NoisePenalty == nil || *got.NoisePenalty != 50 {
		t.Errorf("NoisePenalty = %v, want 50", got.NoisePenalty)
	}
	if !almostEqual(got.ROIPercent, (100.0-300.0)/300.0*100) {
		t.Errorf("ROIPercent = %v", got.ROIPercent)
	}
}

func TestDeriveOverflowingSpendStaysFinite(t *testing.T) {
	input := models.PredictionInput{
		RDSpend: 1e308, AdminSpend: 1e308, MarketingSpend: 1e308,
		Region: "Florida", Variant: models.VariantAllFeatures,
	}
	comparison := 2e6

	got := Derive(1e6, &comparison, input)

	for name, v := range map[string]float64{
		"TotalSpend":          got.TotalSpend,
		"ImpliedRevenue":      got.ImpliedRevenue,
		"ROIPercent":          got.ROIPercent,
		"EBITDAMarginPercent": got.EBITDAMarginPercent,
		"OpexRatio":           got.OpexRatio.Value,
		"NoisePenalty":        *got.NoisePenalty,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v, want finite", name, v)
		}
	}
	if !almostEqual(got.ROIPercent, -100) {
		t.Errorf("ROIPercent = %v, want -100", got.ROIPercent)
	}
	if got.OpexRatio.Label != "2.00" {
		t.Errorf("OpexRatio = %+v, want 2.00", got.OpexRatio)
	}
	if got.RiskTier != models.RiskHigh {
		t.Errorf("RiskTier = %q, want %q", got.RiskTier, models.RiskHigh)
	}
}

func TestROIPercent(t *testing.T) {
	tests := []struct {
		name   string
		profit float64
		input  models.PredictionInput
		want   float64
	}{
		{name: "no spend", profit: 0, input: models.PredictionInput{}, want: 0},
		{name: "no spend with profit", profit: 500, input: models.PredictionInput{}, want: 0},
		{name: "total spend", profit: 300, input: models.PredictionInput{RDSpend: 100, AdminSpend: 100}, want: 50},
		{name: "loss", profit: 50, input: models.PredictionInput{RDSpend: 100}, want: -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ROIPercent(tt.profit, tt.input); !almostEqual(got, tt.want) {
				t.Errorf("ROIPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEBITDAMarginNonPositiveRevenue(t *testing.T) {
	if got := EBITDAMarginPercent(-500, 100); got != 0 {
		t.Errorf("EBITDAMarginPercent() = %v, want 0", got)
	}
	if got := EBITDAMarginPercent(0, 0); got != 0 {
		t.Errorf("EBITDAMarginPercent() = %v, want 0", got)
	}
}

func TestOpexUndefinedWithoutRD(t *testing.T) {
	got := Opex(models.PredictionInput{AdminSpend: 10, MarketingSpend: 10})
	if got.Defined || got.Label != models.OpexLean {
		t.Errorf("Opex() = %+v, want undefined LEAN", got)
	}
}

func TestMarketTier(t *testing.T) {
	tests := []struct {
		profit float64
		want   string
	}{
		{profit: 500_000_001, want: models.MarketUnicorn},
		{profit: 500_000_000, want: models.MarketTierOne},
		{profit: 100_000_001, want: models.MarketTierOne},
		{profit: 100_000_000, want: models.MarketEmerging},
		{profit: -1, want: models.MarketEmerging},
	}

	for _, tt := range tests {
		if got := MarketTier(tt.profit); got != tt.want {
			t.Errorf("MarketTier(%v) = %q, want %q", tt.profit, got, tt.want)
		}
	}
}

func TestRiskTier(t *testing.T) {
	tests := []struct {
		name   string
		profit float64
		input  models.PredictionInput
		want   string
	}{
		{name: "negative roi", profit: 10, input: models.PredictionInput{RDSpend: 100}, want: models.RiskHigh},
		{name: "opex above one", profit: 10_000, input: models.PredictionInput{RDSpend: 100, AdminSpend: 101}, want: models.RiskHigh},
		{name: "opex exactly one", profit: 10_000, input: models.PredictionInput{RDSpend: 100, AdminSpend: 100}, want: models.RiskOptimized},
		{name: "undefined opex with zero roi", profit: 0, input: models.PredictionInput{}, want: models.RiskOptimized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.profit, nil, tt.input).RiskTier; got != tt.want {
				t.Errorf("RiskTier = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEngineCustomRule(t *testing.T) {
	engine, err := NewEngine("roi_percent < 25.0")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	got := engine.Derive(110, nil, models.PredictionInput{RDSpend: 100})
	if got.RiskTier != models.RiskHigh {
		t.Errorf("RiskTier = %q, want %q for roi 10%%", got.RiskTier, models.RiskHigh)
	}
}

func TestNewEngineRejectsBadRules(t *testing.T) {
	for _, rule := range []string{"roi_percent <", "roi_percent + 1.0", "unknown_var > 1.0"} {
		if _, err := NewEngine(rule); err == nil {
			t.Errorf("NewEngine(%q) error = nil, want error", rule)
		}
	}
}

func TestNewEngineEmptyRuleUsesDefault(t *testing.T) {
	engine, err := NewEngine("")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine.Rule() != DefaultRiskRule {
		t.Errorf("Rule() = %q, want default", engine.Rule())
	}
}
