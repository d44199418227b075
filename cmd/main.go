package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/ProfitPredictor/internal/api/inference"
	"github.com/Alias1177/ProfitPredictor/internal/config"
	"github.com/Alias1177/ProfitPredictor/internal/metrics"
	"github.com/Alias1177/ProfitPredictor/internal/pipeline"
	"github.com/Alias1177/ProfitPredictor/internal/presentation"
	"github.com/Alias1177/ProfitPredictor/internal/validation"
	"github.com/Alias1177/ProfitPredictor/models"
)

func main() {
	modelType := flag.String("model", "optimized", "Model: optimized or all_features")
	rd := flag.String("rd", "", "R&D spend in USD (required)")
	admin := flag.String("admin", "", "Administration spend in USD (all_features only)")
	marketing := flag.String("marketing", "", "Marketing spend in USD (all_features only)")
	region := flag.String("state", "New York", "Region the startup operates in")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.LogLevel)

	engine, err := metrics.NewEngine(cfg.RiskRule)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid risk rule")
	}
	client := inference.NewClient(inference.ClientOptions{
		URL:            cfg.InferenceURL,
		ProfitKeys:     cfg.ProfitKeys,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
	})

	var sink presentation.Sink = presentation.WriterSink{W: os.Stdout}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		sink = presentation.SinkFunc(func(u presentation.Update) {
			if u.State == models.StateLoading {
				return
			}
			if err := enc.Encode(presentation.NewView(u)); err != nil {
				log.Error().Err(err).Msg("Failed to encode result")
			}
		})
	}

	form := validation.Form{
		ModelType:      *modelType,
		RDSpend:        *rd,
		AdminSpend:     *admin,
		MarketingSpend: *marketing,
		Region:         *region,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.RequestTimeout)
	defer cancel()

	_, err = pipeline.New(client, engine).Submit(ctx, "cli", form, presentation.NewPresenter(sink))
	if err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Fields() {
				fmt.Fprintf(os.Stderr, "invalid %s: %s\n", fe.Field, fe.Reason)
			}
			flag.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}
