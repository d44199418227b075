package presentation

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Alias1177/ProfitPredictor/models"
)

// Status texts shown next to the result
const (
	StatusLoading = "Calculating Matrix..."
	StatusSuccess = "Prediction Secured"
	StatusError   = "Connection to AI Failed"

	ResultLoading = "..."
	ResultError   = "ERR"

	// FallbackBanner is shown when a failure carries no message
	FallbackBanner = "System malfunction. Retrying connection."
)

// Update is one lifecycle step handed to a Sink
type Update struct {
	State      models.LifecycleState
	Input      models.PredictionInput
	Result     *models.PredictionResult
	Comparison *models.PredictionResult
	Metrics    *models.DerivedMetrics
	Chart      *Chart
	Err        error
}

// Sink displays updates: a terminal, an HTTP response, a chat message
type Sink interface {
	Render(u Update)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(u Update)

func (f SinkFunc) Render(u Update) { f(u) }

// StatusText returns the headline for the update state
func (u Update) StatusText() string {
	switch u.State {
	case models.StateLoading:
		return StatusLoading
	case models.StateSuccess:
		return StatusSuccess
	case models.StateError:
		return StatusError
	}
	return ""
}

// ResultText is the main figure: the formatted profit, "..." while loading
// and "ERR" after a failure.
func (u Update) ResultText() string {
	switch u.State {
	case models.StateLoading:
		return ResultLoading
	case models.StateError:
		return ResultError
	}
	if u.Result == nil {
		return ""
	}
	return FormatUSD(u.Result.PredictedProfit)
}

// Banner is the error message shown in error state, empty otherwise
func (u Update) Banner() string {
	if u.State != models.StateError {
		return ""
	}
	if u.Err == nil || strings.TrimSpace(u.Err.Error()) == "" {
		return FallbackBanner
	}
	return u.Err.Error()
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatUSD formats v as en-US dollars with two decimals, e.g. "$1,234.50"
// or "-$20.00".
func FormatUSD(v float64) string {
	if v < 0 {
		return "-$" + printer.Sprintf("%.2f", -v)
	}
	return "$" + printer.Sprintf("%.2f", v)
}

// FormatPercent formats a percentage with two decimals
func FormatPercent(v float64) string {
	return printer.Sprintf("%.2f%%", v)
}

// Chart is the data behind the result chart. Every successful render builds
// a new instance; IDs are never reused.
type Chart struct {
	ID        uint64    `json:"id"`
	Labels    []string  `json:"labels"`
	Values    []float64 `json:"values"`
	CreatedAt time.Time `json:"created_at"`
}

var chartSeq atomic.Uint64

// RenderChart builds a fresh chart from a successful prediction
func RenderChart(result models.PredictionResult, comparison *models.PredictionResult, metrics models.DerivedMetrics) *Chart {
	c := &Chart{
		ID:        chartSeq.Add(1),
		Labels:    []string{"Predicted Profit", "Total Spend", "Implied Revenue"},
		Values:    []float64{result.PredictedProfit, metrics.TotalSpend, metrics.ImpliedRevenue},
		CreatedAt: time.Now(),
	}
	if comparison != nil {
		c.Labels = append(c.Labels, "Optimized Model")
		c.Values = append(c.Values, comparison.PredictedProfit)
	}
	return c
}

// Presenter forwards lifecycle updates of one user to a sink. It owns the
// current chart, which is replaced on every success. Create one per user or
// session.
type Presenter struct {
	sink Sink

	mu    sync.Mutex
	chart *Chart
}

// NewPresenter creates a presenter rendering to sink
func NewPresenter(sink Sink) *Presenter {
	return &Presenter{sink: sink}
}

// Chart returns the chart of the last success, or nil
func (p *Presenter) Chart() *Chart {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chart
}

// Loading signals that a submission was sent
func (p *Presenter) Loading(input models.PredictionInput) {
	p.sink.Render(Update{State: models.StateLoading, Input: input})
}

// Fail signals a failed submission. The previous chart is kept.
func (p *Presenter) Fail(input models.PredictionInput, err error) {
	p.sink.Render(Update{State: models.StateError, Input: input, Err: err})
}

// Succeed replaces the chart and renders the result
func (p *Presenter) Succeed(input models.PredictionInput, prediction *models.Prediction, metrics models.DerivedMetrics) Update {
	chart := RenderChart(prediction.Final, prediction.Comparison, metrics)

	p.mu.Lock()
	p.chart = chart
	p.mu.Unlock()

	u := Update{
		State:      models.StateSuccess,
		Input:      input,
		Result:     &prediction.Final,
		Comparison: prediction.Comparison,
		Metrics:    &metrics,
		Chart:      chart,
	}
	p.sink.Render(u)
	return u
}
