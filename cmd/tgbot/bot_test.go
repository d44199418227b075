package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/ProfitPredictor/internal/pipeline"
	"github.com/Alias1177/ProfitPredictor/internal/profile"
	"github.com/Alias1177/ProfitPredictor/models"
)

type fakeAPI struct {
	mu     sync.Mutex
	nextID int
	texts  []string
	edits  []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.texts = append(f.texts, m.Text)
	case tgbotapi.EditMessageTextConfig:
		f.edits = append(f.edits, m.Text)
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) all() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(append(append([]string{}, f.texts...), f.edits...), "\n")
}

type fakePredictor struct {
	mu     sync.Mutex
	inputs []models.PredictionInput
	err    error
}

func (f *fakePredictor) Predict(ctx context.Context, input models.PredictionInput) (*models.Prediction, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &models.Prediction{Final: models.PredictionResult{PredictedProfit: 100, Variant: input.Variant}}
	if input.Variant == models.VariantAllFeatures {
		p.Comparison = &models.PredictionResult{PredictedProfit: 150, Variant: models.VariantOptimized}
	}
	return p, nil
}

type memStore struct {
	names map[string]string
}

func (m *memStore) Nickname(ctx context.Context, userID string) (string, error) {
	return m.names[userID], nil
}

func (m *memStore) UpdateNickname(ctx context.Context, userID, nickname string) error {
	m.names[userID] = nickname
	return nil
}

func message(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7, FirstName: "Ada"},
		Chat: &tgbotapi.Chat{ID: 70},
		Text: text,
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 70}},
		Data:    data,
	}}
}

func newTestBot(predictor *fakePredictor) (*Bot, *fakeAPI) {
	api := &fakeAPI{}
	prof := profile.NewService(&memStore{names: map[string]string{}}, 10, time.Minute)
	return NewBot(api, pipeline.New(predictor, nil), prof, time.Second, zerolog.Nop()), api
}

func TestAllFeaturesConversation(t *testing.T) {
	predictor := &fakePredictor{}
	bot, api := newTestBot(predictor)

	bot.HandleUpdate(message("/start"))
	bot.HandleUpdate(message("New Prediction"))
	bot.HandleUpdate(callback("model_all_features"))
	bot.HandleUpdate(message("100"))
	bot.HandleUpdate(message("20"))
	bot.HandleUpdate(message("30"))
	bot.HandleUpdate(callback("state_Florida"))
	bot.Wait()

	if len(predictor.inputs) != 1 {
		t.Fatalf("predictions = %d, want 1", len(predictor.inputs))
	}
	want := models.PredictionInput{RDSpend: 100, AdminSpend: 20, MarketingSpend: 30, Region: "Florida", Variant: models.VariantAllFeatures}
	if predictor.inputs[0] != want {
		t.Errorf("input = %+v, want %+v", predictor.inputs[0], want)
	}

	out := api.all()
	for _, s := range []string{"Calculating Matrix...", "Prediction Secured", "Noise Penalty: $50.00"} {
		if !strings.Contains(out, s) {
			t.Errorf("messages missing %q:\n%s", s, out)
		}
	}
	if len(api.edits) != 1 {
		t.Errorf("edits = %d, want the loading message edited once", len(api.edits))
	}
}

func TestOptimizedConversationSkipsAdminAndMarketing(t *testing.T) {
	predictor := &fakePredictor{}
	bot, _ := newTestBot(predictor)

	bot.HandleUpdate(message("New Prediction"))
	bot.HandleUpdate(callback("model_optimized"))
	bot.HandleUpdate(message("1000"))
	bot.HandleUpdate(message("New York"))
	bot.Wait()

	if len(predictor.inputs) != 1 {
		t.Fatalf("predictions = %d, want 1", len(predictor.inputs))
	}
	if got := predictor.inputs[0]; got.RDSpend != 1000 || got.Region != "New York" || got.Variant != models.VariantOptimized {
		t.Errorf("input = %+v", got)
	}
}

func TestValidationErrorsAreListed(t *testing.T) {
	predictor := &fakePredictor{}
	bot, api := newTestBot(predictor)

	bot.HandleUpdate(message("New Prediction"))
	bot.HandleUpdate(callback("model_optimized"))
	bot.HandleUpdate(message("-5"))
	bot.HandleUpdate(callback("state_Florida"))
	bot.Wait()

	if len(predictor.inputs) != 0 {
		t.Errorf("predictions = %d, want 0", len(predictor.inputs))
	}
	if out := api.all(); !strings.Contains(out, "R&D spend: must not be negative") {
		t.Errorf("messages missing validation error:\n%s", out)
	}
}

func TestPredictionFailureShowsBanner(t *testing.T) {
	predictor := &fakePredictor{err: &models.TransportError{StatusCode: 500}}
	bot, api := newTestBot(predictor)

	bot.HandleUpdate(message("New Prediction"))
	bot.HandleUpdate(callback("model_optimized"))
	bot.HandleUpdate(message("10"))
	bot.HandleUpdate(message("Florida"))
	bot.Wait()

	out := api.all()
	for _, s := range []string{"Connection to AI Failed", "Result: ERR", "API Connection Interrupted (500)"} {
		if !strings.Contains(out, s) {
			t.Errorf("messages missing %q:\n%s", s, out)
		}
	}
}

func TestNicknameAndLogout(t *testing.T) {
	bot, api := newTestBot(&fakePredictor{})

	bot.HandleUpdate(message("/nickname   Grace  "))
	bot.HandleUpdate(message("Profile"))
	bot.HandleUpdate(message("/logout"))

	out := api.all()
	if !strings.Contains(out, "Nickname updated: Grace") || !strings.Contains(out, "Operator: Grace") {
		t.Errorf("messages = %s", out)
	}
	if _, ok := bot.userStates[7]; ok {
		t.Error("logout should drop the user state")
	}
}
