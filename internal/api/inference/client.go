package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/ProfitPredictor/models"
	httpClient "github.com/Alias1177/ProfitPredictor/internal/platform/http"
)

// Client talks to the profit inference endpoint
type Client struct {
	url        string
	profitKeys []string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new inference client
type ClientOptions struct {
	URL            string
	ProfitKeys     []string // gjson paths, tried in order
	RequestTimeout time.Duration
	RequestsPerSec int
	MaxRetries     int
	Transport      http.RoundTripper
}

// NewClient creates a new inference client
func NewClient(options ClientOptions) *Client {
	keys := options.ProfitKeys
	if len(keys) == 0 {
		keys = models.DefaultProfitKeys
	}

	return &Client{
		url:        options.URL,
		profitKeys: keys,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: options.RequestsPerSec,
			MaxRetries:     options.MaxRetries,
			Transport:      options.Transport,
		}),
		logger: log.With().Str("component", "inference_client").Logger(),
	}
}

// Predict asks for a profit prediction. The optimized variant costs one
// request. The all-features variant also re-runs the optimized model with the
// same R&D spend and region; both requests run concurrently and the first
// failure cancels the other, so a partial result is never returned.
func (c *Client) Predict(ctx context.Context, input models.PredictionInput) (*models.Prediction, error) {
	if input.Variant != models.VariantAllFeatures {
		res, err := c.predictOne(ctx, input.AsOptimized())
		if err != nil {
			return nil, err
		}
		return &models.Prediction{Final: *res}, nil
	}

	var final, comparison *models.PredictionResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		final, err = c.predictOne(gctx, input)
		return err
	})
	g.Go(func() error {
		var err error
		comparison, err = c.predictOne(gctx, input.AsOptimized())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.Prediction{Final: *final, Comparison: comparison}, nil
}

func (c *Client) predictOne(ctx context.Context, input models.PredictionInput) (*models.PredictionResult, error) {
	payload, err := json.Marshal(models.NewInferenceRequest(input))
	if err != nil {
		return nil, fmt.Errorf("encoding inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	logger := c.logger.With().
		Str("request_id", requestID).
		Str("model_type", string(input.Variant)).
		Logger()
	logger.Debug().Float64("rd_spend", input.RDSpend).Str("state", input.Region).Msg("Requesting prediction")

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		// A concurrent request failing cancels this one with its own error as cause
		if cause := context.Cause(ctx); errors.Is(err, context.Canceled) && cause != nil && !errors.Is(cause, context.Canceled) {
			logger.Debug().AnErr("cause", cause).Msg("Inference request canceled")
		} else {
			logger.Error().Err(err).Msg("Inference request failed")
		}
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	profit, key, err := c.extractProfit(body)
	if err != nil {
		logger.Error().Err(err).Str("response", string(body)).Msg("Unusable inference response")
		return nil, err
	}
	if key != c.profitKeys[0] {
		logger.Warn().Str("key", key).Msg("Profit read from fallback key")
	}

	logger.Debug().Float64("predicted_profit", profit).Msg("Prediction received")
	return &models.PredictionResult{
		PredictedProfit: profit,
		Variant:         input.Variant,
		ProfitKey:       key,
	}, nil
}

// extractProfit returns the first present, non-null numeric value among the
// configured keys.
func (c *Client) extractProfit(body []byte) (float64, string, error) {
	if !gjson.ValidBytes(body) {
		return 0, "", &models.MalformedResponseError{Reason: "response is not valid JSON"}
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return 0, "", &models.MalformedResponseError{Reason: "response is not a JSON object"}
	}

	for _, key := range c.profitKeys {
		v := doc.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type != gjson.Number {
			c.logger.Warn().Str("key", key).Str("value", v.Raw).Msg("Ignoring non-numeric profit")
			continue
		}
		profit := v.Float()
		if math.IsNaN(profit) || math.IsInf(profit, 0) {
			return 0, "", &models.MalformedResponseError{Reason: fmt.Sprintf("profit under %q is not finite", key)}
		}
		return profit, key, nil
	}

	return 0, "", &models.MalformedResponseError{Reason: fmt.Sprintf("no numeric profit under %v", c.profitKeys)}
}

func transportError(err error) error {
	var statusErr *httpClient.HTTPStatusError
	if errors.As(err, &statusErr) {
		return &models.TransportError{StatusCode: statusErr.StatusCode, Err: err}
	}
	return &models.TransportError{Err: err}
}
