package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/Alias1177/ProfitPredictor/internal/metrics"
	"github.com/Alias1177/ProfitPredictor/internal/presentation"
	"github.com/Alias1177/ProfitPredictor/internal/validation"
	"github.com/Alias1177/ProfitPredictor/models"
)

type fakePredictor struct {
	calls   int
	final   float64
	compare float64
	err     error
	block   chan struct{} // when set, Predict waits for it to close
	entered chan struct{}
}

func (f *fakePredictor) Predict(ctx context.Context, input models.PredictionInput) (*models.Prediction, error) {
	f.calls++
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	p := &models.Prediction{Final: models.PredictionResult{PredictedProfit: f.final, Variant: input.Variant}}
	if input.Variant == models.VariantAllFeatures {
		p.Comparison = &models.PredictionResult{PredictedProfit: f.compare, Variant: models.VariantOptimized}
	}
	return p, nil
}

type stateSink struct {
	states []models.LifecycleState
}

func (s *stateSink) Render(u presentation.Update) {
	s.states = append(s.states, u.State)
}

func TestNewWithoutEngineUsesDefault(t *testing.T) {
	p := New(&fakePredictor{}, nil)
	if p.engine != metrics.Default() {
		t.Error("engine should be the package default")
	}
	if p.engine.Rule() != metrics.DefaultRiskRule {
		t.Errorf("Rule() = %q, want %q", p.engine.Rule(), metrics.DefaultRiskRule)
	}
}

func TestSubmitSuccess(t *testing.T) {
	predictor := &fakePredictor{final: 100, compare: 150}
	sink := &stateSink{}
	p := New(predictor, nil)

	form := validation.Form{ModelType: "all_features", RDSpend: "100", AdminSpend: "20", MarketingSpend: "30", Region: "Florida"}
	out, err := p.Submit(context.Background(), "user-1", form, presentation.NewPresenter(sink))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if out.Metrics.NoisePenalty == nil || *out.Metrics.NoisePenalty != 50 {
		t.Errorf("NoisePenalty = %v, want 50", out.Metrics.NoisePenalty)
	}
	if out.Update.Chart == nil {
		t.Error("Update.Chart = nil")
	}
	if len(sink.states) != 2 || sink.states[0] != models.StateLoading || sink.states[1] != models.StateSuccess {
		t.Errorf("states = %v, want [LOADING SUCCESS]", sink.states)
	}
	if p.InFlight("user-1") {
		t.Error("guard should be released after completion")
	}
}

func TestSubmitValidationErrorSkipsNetwork(t *testing.T) {
	predictor := &fakePredictor{}
	sink := &stateSink{}
	p := New(predictor, nil)

	_, err := p.Submit(context.Background(), "user-1", validation.Form{RDSpend: "-1"}, presentation.NewPresenter(sink))

	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() error = %v, want *ValidationError", err)
	}
	if predictor.calls != 0 {
		t.Errorf("predictor calls = %d, want 0", predictor.calls)
	}
	if len(sink.states) != 0 {
		t.Errorf("states = %v, want none", sink.states)
	}
}

func TestSubmitPredictionFailure(t *testing.T) {
	predictor := &fakePredictor{err: &models.TransportError{StatusCode: 502}}
	sink := &stateSink{}
	p := New(predictor, nil)

	_, err := p.Submit(context.Background(), "user-1", validation.Form{RDSpend: "10", Region: "Florida"}, presentation.NewPresenter(sink))
	if !models.IsRemoteFailure(err) {
		t.Fatalf("Submit() error = %v, want remote failure", err)
	}
	if len(sink.states) != 2 || sink.states[1] != models.StateError {
		t.Errorf("states = %v, want [LOADING ERROR]", sink.states)
	}
	if p.InFlight("user-1") {
		t.Error("guard should be released after failure")
	}
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	predictor := &fakePredictor{final: 1, block: make(chan struct{}), entered: make(chan struct{})}
	p := New(predictor, nil)
	form := validation.Form{RDSpend: "10", Region: "Florida"}

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "user-1", form, presentation.NewPresenter(&stateSink{}))
		done <- err
	}()
	<-predictor.entered

	if _, err := p.Submit(context.Background(), "user-1", form, presentation.NewPresenter(&stateSink{})); !errors.Is(err, models.ErrSubmissionInFlight) {
		t.Errorf("second Submit() error = %v, want ErrSubmissionInFlight", err)
	}
	if !p.InFlight("user-1") {
		t.Error("InFlight() = false while first submission is pending")
	}

	close(predictor.block)
	if err := <-done; err != nil {
		t.Errorf("first Submit() error = %v", err)
	}
}
