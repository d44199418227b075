package models

import (
	"fmt"
	"strings"
)

// ModelVariant selects which inference model answers a prediction
type ModelVariant string

const (
	VariantOptimized   ModelVariant = "optimized"    // R&D spend only
	VariantAllFeatures ModelVariant = "all_features" // R&D, administration and marketing
)

// ParseModelVariant accepts the wire value or the enum spelling, case-insensitively
func ParseModelVariant(s string) (ModelVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "optimized":
		return VariantOptimized, nil
	case "all_features", "all-features", "allfeatures":
		return VariantAllFeatures, nil
	}
	return "", fmt.Errorf("unknown model variant %q", s)
}

// String returns the upper-case enum name used in logs and views
func (v ModelVariant) String() string {
	switch v {
	case VariantOptimized:
		return "OPTIMIZED"
	case VariantAllFeatures:
		return "ALL_FEATURES"
	}
	return "UNKNOWN"
}

// PredictionInput is a validated form submission
type PredictionInput struct {
	RDSpend        float64      `json:"rd_spend"`
	AdminSpend     float64      `json:"admin_spend"`     // zero unless Variant is all_features
	MarketingSpend float64      `json:"marketing_spend"` // zero unless Variant is all_features
	Region         string       `json:"region"`
	Variant        ModelVariant `json:"model_type"`
}

// TotalSpend sums every spend column of the input
func (in PredictionInput) TotalSpend() float64 {
	return in.RDSpend + in.AdminSpend + in.MarketingSpend
}

// AsOptimized returns a copy suitable for the optimized model: same R&D and
// region, administration and marketing zeroed.
func (in PredictionInput) AsOptimized() PredictionInput {
	return PredictionInput{
		RDSpend: in.RDSpend,
		Region:  in.Region,
		Variant: VariantOptimized,
	}
}

// InferenceRequest is the wire body posted to the inference endpoint
type InferenceRequest struct {
	ModelType      ModelVariant `json:"model_type"`
	RDSpend        float64      `json:"rd_spend"`
	AdminSpend     float64      `json:"admin_spend"`
	MarketingSpend float64      `json:"marketing_spend"`
	State          string       `json:"state"`
}

// NewInferenceRequest maps an input onto the wire contract. Administration and
// marketing are always sent as zero for the optimized model.
func NewInferenceRequest(in PredictionInput) InferenceRequest {
	req := InferenceRequest{
		ModelType: in.Variant,
		RDSpend:   in.RDSpend,
		State:     in.Region,
	}
	if in.Variant == VariantAllFeatures {
		req.AdminSpend = in.AdminSpend
		req.MarketingSpend = in.MarketingSpend
	}
	return req
}

// PredictionResult stores one answer of the inference endpoint
type PredictionResult struct {
	PredictedProfit float64      `json:"predicted_profit"`
	Variant         ModelVariant `json:"model_type"`
	ProfitKey       string       `json:"profit_key"` // response key the value was read from
}

// Prediction groups the answer for the selected model and, in all_features
// mode, the optimized comparison run.
type Prediction struct {
	Final      PredictionResult  `json:"final"`
	Comparison *PredictionResult `json:"comparison,omitempty"`
}

// ComparisonProfit returns the comparison profit or nil in single-model mode
func (p *Prediction) ComparisonProfit() *float64 {
	if p == nil || p.Comparison == nil {
		return nil
	}
	v := p.Comparison.PredictedProfit
	return &v
}

// Risk tiers
const (
	RiskHigh      = "HIGH_RISK"
	RiskOptimized = "OPTIMIZED"
)

// DefaultRiskRule flags a submission whose operating expenses exceed R&D or
// whose ROI is negative.
const DefaultRiskRule = "opex_defined && opex_ratio > 1.0 || roi_percent < 0.0"

// DefaultProfitKeys lists the response keys the profit may come back under,
// in lookup order.
var DefaultProfitKeys = []string{"predicted_profit", "predicted_predicted_profit"}

// Market tiers
const (
	MarketUnicorn  = "Unicorn"
	MarketTierOne  = "Tier 1"
	MarketEmerging = "Emerging"
)

// OpexLean labels an undefined (no R&D) or zero operating-expense ratio
const OpexLean = "LEAN"

// OpexRatio is (admin + marketing) / rd. Defined is false when rd is zero.
type OpexRatio struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
	Label   string  `json:"label"`
}

// DerivedMetrics is recomputed for every submission and never persisted
type DerivedMetrics struct {
	ROIPercent          float64   `json:"roi_percent"`
	EBITDAMarginPercent float64   `json:"ebitda_margin_percent"`
	OpexRatio           OpexRatio `json:"opex_ratio"`
	RiskTier            string    `json:"risk_tier"`   // HIGH_RISK, OPTIMIZED
	MarketTier          string    `json:"market_tier"` // Unicorn, Tier 1, Emerging
	NoisePenalty        *float64  `json:"noise_penalty,omitempty"`
	TotalSpend          float64   `json:"total_spend"`
	ImpliedRevenue      float64   `json:"implied_revenue"`
}

// LifecycleState is the three-state signal consumed by presentation sinks
type LifecycleState string

const (
	StateLoading LifecycleState = "LOADING"
	StateSuccess LifecycleState = "SUCCESS"
	StateError   LifecycleState = "ERROR"
)

// User is the identity part of an auth session
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is what the auth collaborator reports for a token
type Session struct {
	AccessToken string `json:"-"`
	User        User   `json:"user"`
}
