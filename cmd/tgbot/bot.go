package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/ProfitPredictor/internal/pipeline"
	"github.com/Alias1177/ProfitPredictor/internal/presentation"
	"github.com/Alias1177/ProfitPredictor/internal/profile"
	"github.com/Alias1177/ProfitPredictor/internal/validation"
	"github.com/Alias1177/ProfitPredictor/models"
)

var supportedRegions = []string{"New York", "California", "Florida"}

// User state stages
const (
	StageInitial = iota
	StageAwaitingModel
	StageAwaitingRD
	StageAwaitingAdmin
	StageAwaitingMarketing
	StageAwaitingRegion
)

// UserState represents the current state of a user's interaction
type UserState struct {
	Stage        int
	Form         validation.Form
	LastActivity time.Time
	presenter    *presentation.Presenter
}

// sender is the part of *tgbotapi.BotAPI the bot uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot runs the prediction conversation. Updates are handled one at a time;
// predictions run in the background so a second request from the same user
// meets the in-flight guard.
type Bot struct {
	api        sender
	pipeline   *pipeline.Pipeline
	profiles   *profile.Service // nil without a database
	userStates map[int64]*UserState
	timeout    time.Duration
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

func NewBot(api sender, p *pipeline.Pipeline, profiles *profile.Service, timeout time.Duration, logger zerolog.Logger) *Bot {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Bot{
		api:        api,
		pipeline:   p,
		profiles:   profiles,
		userStates: make(map[int64]*UserState),
		timeout:    timeout,
		logger:     logger,
	}
}

// Wait blocks until running predictions finish
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) state(userID, chatID int64) *UserState {
	state, exists := b.userStates[userID]
	if !exists {
		state = &UserState{Stage: StageInitial}
		state.presenter = presentation.NewPresenter(&telegramSink{api: b.api, chatID: chatID, logger: b.logger})
		b.userStates[userID] = state
	}
	state.LastActivity = time.Now()
	return state
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// handleMessage processes incoming text messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}
	userID := message.From.ID
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)
	state := b.state(userID, chatID)

	switch {
	case text == "/start" || text == "Main Menu":
		state.Stage = StageInitial
		state.Form = validation.Form{}
		msg := tgbotapi.NewMessage(chatID, "Welcome to the Profit Predictor Bot! What would you like to do?")
		msg.ReplyMarkup = getMainMenuKeyboard()
		b.api.Send(msg)
	case text == "New Prediction" || text == "/predict":
		state.Form = validation.Form{}
		state.Stage = StageAwaitingModel
		b.sendModelMenu(chatID)
	case text == "Profile" || text == "/profile":
		b.showProfile(chatID, userID, message.From)
	case strings.HasPrefix(text, "/nickname"):
		b.updateNickname(chatID, userID, strings.TrimSpace(strings.TrimPrefix(text, "/nickname")))
	case text == "Logout" || text == "/logout":
		b.logout(chatID, userID)
	default:
		b.handleStageInput(chatID, userID, state, text)
	}
}

func (b *Bot) handleStageInput(chatID, userID int64, state *UserState, text string) {
	switch state.Stage {
	case StageAwaitingModel:
		b.send(chatID, "Please choose a model from the list:")
		b.sendModelMenu(chatID)
	case StageAwaitingRD:
		state.Form.RDSpend = text
		if state.Form.ModelType == string(models.VariantAllFeatures) {
			state.Stage = StageAwaitingAdmin
			b.send(chatID, "Enter Administration spend (USD):")
			return
		}
		state.Stage = StageAwaitingRegion
		b.sendRegionMenu(chatID)
	case StageAwaitingAdmin:
		state.Form.AdminSpend = text
		state.Stage = StageAwaitingMarketing
		b.send(chatID, "Enter Marketing spend (USD):")
	case StageAwaitingMarketing:
		state.Form.MarketingSpend = text
		state.Stage = StageAwaitingRegion
		b.sendRegionMenu(chatID)
	case StageAwaitingRegion:
		state.Form.Region = text
		b.submit(chatID, userID, state)
	default:
		msg := tgbotapi.NewMessage(chatID, "Please use the menu buttons to interact with the bot.")
		msg.ReplyMarkup = getMainMenuKeyboard()
		b.api.Send(msg)
	}
}

// handleCallback processes inline keyboard button presses
func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.From == nil || callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	data := callback.Data
	state := b.state(userID, chatID)

	// Acknowledge the callback query
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to answer callback")
	}

	switch {
	case strings.HasPrefix(data, "model_"):
		variant, err := models.ParseModelVariant(strings.TrimPrefix(data, "model_"))
		if err != nil {
			b.sendModelMenu(chatID)
			return
		}
		state.Form = validation.Form{ModelType: string(variant)}
		state.Stage = StageAwaitingRD
		b.send(chatID, fmt.Sprintf("Selected model: %s\nEnter R&D spend (USD):", variant))
	case strings.HasPrefix(data, "state_") && state.Stage == StageAwaitingRegion:
		state.Form.Region = strings.TrimPrefix(data, "state_")
		b.submit(chatID, userID, state)
	case data == "main_menu":
		state.Stage = StageInitial
		msg := tgbotapi.NewMessage(chatID, "What would you like to do?")
		msg.ReplyMarkup = getMainMenuKeyboard()
		b.api.Send(msg)
	}
}

// submit hands the collected form to the pipeline in the background
func (b *Bot) submit(chatID, userID int64, state *UserState) {
	form := state.Form
	presenter := state.presenter
	state.Stage = StageInitial
	state.Form = validation.Form{}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.runPrediction(chatID, userID, form, presenter)
	}()
}

func (b *Bot) runPrediction(chatID, userID int64, form validation.Form, presenter *presentation.Presenter) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	_, err := b.pipeline.Submit(ctx, strconv.FormatInt(userID, 10), form, presenter)
	if err == nil {
		return
	}

	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		var lines []string
		for _, fe := range verr.Fields() {
			lines = append(lines, fmt.Sprintf("• %s: %s", fieldLabel(fe.Field), reasonText(fe.Reason)))
		}
		msg := tgbotapi.NewMessage(chatID, "Please fix the following and try again:\n"+strings.Join(lines, "\n"))
		msg.ReplyMarkup = getMainMenuKeyboard()
		b.api.Send(msg)
	case errors.Is(err, models.ErrSubmissionInFlight):
		b.send(chatID, "A prediction is already in progress, please wait for it to finish.")
	default:
		// The sink already showed the failure
		b.logger.Debug().Err(err).Int64("user_id", userID).Msg("Prediction ended with error")
	}
}

func (b *Bot) showProfile(chatID, userID int64, from *tgbotapi.User) {
	name := from.FirstName
	if b.profiles != nil {
		nickname, err := b.profiles.Nickname(context.Background(), strconv.FormatInt(userID, 10))
		if err != nil {
			b.send(chatID, "Sorry, there was an error. Please try again later.")
			return
		}
		if nickname != "" {
			name = nickname
		}
	}
	b.send(chatID, fmt.Sprintf("Operator: %s\nUse /nickname <name> to change it.", name))
}

func (b *Bot) updateNickname(chatID, userID int64, nickname string) {
	if b.profiles == nil {
		b.send(chatID, "Profiles are not available right now.")
		return
	}
	saved, err := b.profiles.UpdateNickname(context.Background(), strconv.FormatInt(userID, 10), nickname)
	if errors.Is(err, profile.ErrEmptyNickname) {
		b.send(chatID, "Usage: /nickname <name>")
		return
	}
	if err != nil {
		b.send(chatID, "Sorry, there was an error. Please try again later.")
		return
	}
	b.send(chatID, fmt.Sprintf("Nickname updated: %s", saved))
}

// logout drops everything the bot keeps about the user
func (b *Bot) logout(chatID, userID int64) {
	delete(b.userStates, userID)
	if b.profiles != nil {
		b.profiles.Forget(strconv.FormatInt(userID, 10))
	}
	msg := tgbotapi.NewMessage(chatID, "Signed out. Send /start to begin again.")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.api.Send(msg)
}

// getMainMenuKeyboard returns the main menu keyboard
func getMainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("New Prediction"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Profile"),
			tgbotapi.NewKeyboardButton("Logout"),
		),
	)
}

// sendModelMenu displays model selection as inline buttons
func (b *Bot) sendModelMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Select a model:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Optimized (R&D only)", "model_"+string(models.VariantOptimized)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("All Features", "model_"+string(models.VariantAllFeatures)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("← Back to Main Menu", "main_menu"),
		),
	)
	b.api.Send(msg)
}

// sendRegionMenu displays region selection as inline buttons
func (b *Bot) sendRegionMenu(chatID int64) {
	var row []tgbotapi.InlineKeyboardButton
	for _, region := range supportedRegions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(region, "state_"+region))
	}
	msg := tgbotapi.NewMessage(chatID, "Select a region (or type one):")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	b.api.Send(msg)
}

func fieldLabel(field string) string {
	switch field {
	case validation.FieldRDSpend:
		return "R&D spend"
	case validation.FieldAdminSpend:
		return "Administration spend"
	case validation.FieldMarketingSpend:
		return "Marketing spend"
	case validation.FieldRegion:
		return "Region"
	case validation.FieldModelType:
		return "Model"
	}
	return field
}

func reasonText(reason validation.Reason) string {
	switch reason {
	case validation.MissingField:
		return "required"
	case validation.NegativeValue:
		return "must not be negative"
	case validation.InvalidNumber:
		return "must be a number"
	case validation.InvalidChoice:
		return "unknown option"
	}
	return string(reason)
}

// telegramSink shows a prediction as one message that is edited as the
// request progresses.
type telegramSink struct {
	api       sender
	chatID    int64
	messageID int
	logger    zerolog.Logger
}

func (s *telegramSink) Render(u presentation.Update) {
	switch u.State {
	case models.StateLoading:
		sent, err := s.api.Send(tgbotapi.NewMessage(s.chatID, "⏳ "+u.StatusText()))
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to send loading message")
			s.messageID = 0
			return
		}
		s.messageID = sent.MessageID
	case models.StateSuccess:
		s.show(fmt.Sprintf("✅ %s\n\n%s", u.StatusText(), presentation.Summary(u)))
	case models.StateError:
		s.show(fmt.Sprintf("❌ %s\nResult: %s\n%s", u.StatusText(), u.ResultText(), u.Banner()))
	}
}

func (s *telegramSink) show(text string) {
	var c tgbotapi.Chattable = tgbotapi.NewMessage(s.chatID, text)
	if s.messageID != 0 {
		c = tgbotapi.NewEditMessageText(s.chatID, s.messageID, text)
	}
	if _, err := s.api.Send(c); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", s.chatID).Msg("Failed to show prediction")
	}
}
