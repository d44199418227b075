package pipeline

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/ProfitPredictor/internal/metrics"
	"github.com/Alias1177/ProfitPredictor/internal/presentation"
	"github.com/Alias1177/ProfitPredictor/internal/validation"
	"github.com/Alias1177/ProfitPredictor/models"
)

// Outcome is everything a successful submission produced
type Outcome struct {
	Input      models.PredictionInput
	Prediction *models.Prediction
	Metrics    models.DerivedMetrics
	Update     presentation.Update
}

// Pipeline runs a form submission end to end: validate, predict, derive and
// present. At most one submission per key is in flight at a time.
type Pipeline struct {
	predictor models.ProfitPredictor
	engine    *metrics.Engine
	inFlight  *xsync.MapOf[string, time.Time]
	logger    zerolog.Logger
}

// New creates a pipeline. A nil engine uses the default risk rule.
func New(predictor models.ProfitPredictor, engine *metrics.Engine) *Pipeline {
	if engine == nil {
		engine = metrics.Default()
	}
	return &Pipeline{
		predictor: predictor,
		engine:    engine,
		inFlight:  xsync.NewMapOf[string, time.Time](),
		logger:    log.With().Str("component", "pipeline").Logger(),
	}
}

// InFlight reports whether key has a pending submission
func (p *Pipeline) InFlight(key string) bool {
	_, ok := p.inFlight.Load(key)
	return ok
}

// Submit validates form and, when valid, requests a prediction on behalf of
// key. Validation failures return a *validation.ValidationError before any
// network call and without notifying the presenter. A second submission for
// the same key while one is pending fails with models.ErrSubmissionInFlight.
func (p *Pipeline) Submit(ctx context.Context, key string, form validation.Form, presenter *presentation.Presenter) (*Outcome, error) {
	input, err := validation.Validate(form)
	if err != nil {
		p.logger.Debug().Str("key", key).Err(err).Msg("Submission rejected by validation")
		return nil, err
	}

	started := time.Now()
	if since, loaded := p.inFlight.LoadOrStore(key, started); loaded {
		p.logger.Warn().
			Str("key", key).
			Dur("pending_for", time.Since(since)).
			Msg("Submission rejected, previous one still in flight")
		return nil, models.ErrSubmissionInFlight
	}
	defer p.inFlight.Delete(key)

	logger := p.logger.With().Str("key", key).Str("model_type", input.Variant.String()).Logger()

	presenter.Loading(input)

	prediction, err := p.predictor.Predict(ctx, input)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("Prediction failed")
		presenter.Fail(input, err)
		return nil, err
	}

	derived := p.engine.Derive(prediction.Final.PredictedProfit, prediction.ComparisonProfit(), input)
	update := presenter.Succeed(input, prediction, derived)

	logger.Info().
		Float64("predicted_profit", prediction.Final.PredictedProfit).
		Str("risk_tier", derived.RiskTier).
		Str("market_tier", derived.MarketTier).
		Dur("elapsed", time.Since(started)).
		Msg("Prediction completed")

	return &Outcome{
		Input:      input,
		Prediction: prediction,
		Metrics:    derived,
		Update:     update,
	}, nil
}
