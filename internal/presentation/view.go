package presentation

import (
	"fmt"
	"io"

	"github.com/Alias1177/ProfitPredictor/models"
)

// View is the JSON shape of an update
type View struct {
	State            models.LifecycleState  `json:"state"`
	Status           string                 `json:"status"`
	Result           string                 `json:"result"`
	Banner           string                 `json:"banner,omitempty"`
	ModelType        string                 `json:"model_type,omitempty"`
	PredictedProfit  *float64               `json:"predicted_profit,omitempty"`
	ComparisonProfit *float64               `json:"comparison_profit,omitempty"`
	Metrics          *models.DerivedMetrics `json:"metrics,omitempty"`
	Chart            *Chart                 `json:"chart,omitempty"`
}

// NewView flattens an update for JSON clients
func NewView(u Update) View {
	v := View{
		State:   u.State,
		Status:  u.StatusText(),
		Result:  u.ResultText(),
		Banner:  u.Banner(),
		Metrics: u.Metrics,
		Chart:   u.Chart,
	}
	if u.Input.Variant != "" {
		v.ModelType = u.Input.Variant.String()
	}
	if u.Result != nil {
		profit := u.Result.PredictedProfit
		v.PredictedProfit = &profit
	}
	if u.Comparison != nil {
		cp := u.Comparison.PredictedProfit
		v.ComparisonProfit = &cp
	}
	return v
}

// WriterSink prints updates as plain text, one block per update
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Render(u Update) {
	fmt.Fprintf(s.W, "[%s] %s\n", u.State, u.StatusText())
	switch u.State {
	case models.StateError:
		fmt.Fprintf(s.W, "Result: %s\n%s\n", u.ResultText(), u.Banner())
	case models.StateSuccess:
		fmt.Fprint(s.W, Summary(u))
	}
}

// Summary renders a successful update as a multi-line text report
func Summary(u Update) string {
	if u.Result == nil || u.Metrics == nil {
		return ""
	}
	m := u.Metrics
	out := fmt.Sprintf("Model: %s\nPredicted Profit: %s\n", u.Input.Variant.String(), u.ResultText())
	if u.Comparison != nil {
		out += fmt.Sprintf("Optimized Model: %s\n", FormatUSD(u.Comparison.PredictedProfit))
	}
	out += fmt.Sprintf("Total Spend: %s\nImplied Revenue: %s\n", FormatUSD(m.TotalSpend), FormatUSD(m.ImpliedRevenue))
	out += fmt.Sprintf("ROI: %s\nEBITDA Margin: %s\nOpEx Ratio: %s\n",
		FormatPercent(m.ROIPercent), FormatPercent(m.EBITDAMarginPercent), m.OpexRatio.Label)
	out += fmt.Sprintf("Risk: %s\nMarket Tier: %s\n", m.RiskTier, m.MarketTier)
	if m.NoisePenalty != nil {
		out += fmt.Sprintf("Noise Penalty: %s\n", FormatUSD(*m.NoisePenalty))
	}
	return out
}
