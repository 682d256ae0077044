package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"intralu-bot/internal/components/assert"
	"intralu-bot/internal/components/telemetry"
	"intralu-bot/internal/portal"
)

const (
	report_handler_send    = "handler.send"
	report_handler_courses = "handler.courses"
	report_handler_grades  = "handler.grades"
)

// Handler answers the messages of every chat. Calls for the same chat must
// be serialized by the caller, see Dispatcher.
type Handler struct {
	core   Core
	sender Sender
	wizard wizard
	tel    telemetry.API
}

func NewHandler(core Core, sender Sender, tel telemetry.API) *Handler {
	return newHandler(core, sender, wizardTTL, tel)
}

func newHandler(core Core, sender Sender, ttl time.Duration, tel telemetry.API) *Handler {
	assert.NotNil(core)
	assert.NotNil(sender)
	assert.NotNil(tel)

	return &Handler{
		core:   core,
		sender: sender,
		wizard: newWizard(ttl),
		tel:    telemetry.NewScopedAPI("chat", tel),
	}
}

func (h *Handler) reply(ctx context.Context, chatID portal.ChatID, text string) {
	err := h.sender.Send(ctx, chatID, Message{Text: text, HTML: true})
	if err != nil {
		h.tel.ReportBroken(report_handler_send, err, chatID)
	}
}

// parseCommand splits "/notas@intralu_bot" into "notas", ok is false for
// plain text.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), true
}

func isCancel(command string) bool {
	return command == "cancelar" || command == "cancel"
}

// Handle processes one incoming message.
func (h *Handler) Handle(ctx context.Context, update Update) {
	chatID := update.ChatID
	text := strings.TrimSpace(update.Text)

	state, inWizard := h.wizard.get(chatID)
	// a password may start with a slash, only cancelling interrupts that step
	awaitingSecret := inWizard && state.step == stepSecret

	if command, ok := parseCommand(text); ok && (!awaitingSecret || isCancel(command)) {
		h.handleCommand(ctx, chatID, command)
		return
	}

	if inWizard {
		h.handleLoginStep(ctx, chatID, state, text)
		return
	}

	if _, shown := h.core.LastCourses(chatID); shown {
		h.handleSelection(ctx, chatID, text)
		return
	}

	h.reply(ctx, chatID, textHint)
}

func (h *Handler) handleCommand(ctx context.Context, chatID portal.ChatID, command string) {
	h.tel.ReportDebug("command", chatID, command)

	switch command {
	case "start", "help", "ayuda":
		h.reply(ctx, chatID, textGreeting)
	case "login":
		h.wizard.start(chatID)
		h.reply(ctx, chatID, textAskIdentifier)
	case "cancelar", "cancel":
		if h.wizard.cancel(chatID) {
			h.reply(ctx, chatID, textCancelled)
			return
		}
		h.reply(ctx, chatID, textNothingCancel)
	case "notas", "cursos":
		h.wizard.cancel(chatID)
		h.listCourses(ctx, chatID)
	default:
		h.reply(ctx, chatID, textUnknownCmd)
	}
}

func (h *Handler) handleLoginStep(ctx context.Context, chatID portal.ChatID, state loginState, text string) {
	switch state.step {
	case stepIdentifier:
		if text == "" {
			h.reply(ctx, chatID, textAskIdentifier)
			return
		}
		state.identifier = strings.ToUpper(text)
		state.step = stepConfirmIdentifier
		h.wizard.set(chatID, state)
		h.reply(ctx, chatID, confirmIdentifier(state.identifier))

	case stepConfirmIdentifier:
		switch text {
		case "1":
			state.step = stepSecret
			h.wizard.set(chatID, state)
			h.reply(ctx, chatID, textAskSecret)
		case "2":
			h.wizard.set(chatID, loginState{step: stepIdentifier})
			h.reply(ctx, chatID, textRetryIdentifier)
		default:
			h.reply(ctx, chatID, textAnswerYesNo)
		}

	case stepSecret:
		if text == "" {
			h.reply(ctx, chatID, textRetrySecret)
			return
		}
		state.secret = text
		state.step = stepConfirmSecret
		h.wizard.set(chatID, state)
		h.reply(ctx, chatID, textConfirmSecret)

	case stepConfirmSecret:
		switch text {
		case "1":
			h.core.SetCredentials(chatID, portal.Credentials{
				Identifier: state.identifier,
				Secret:     state.secret,
			})
			h.wizard.cancel(chatID)
			h.tel.ReportDebug("credentials saved", chatID, state.identifier)
			h.reply(ctx, chatID, textSaved)
		case "2":
			state.secret = ""
			state.step = stepSecret
			h.wizard.set(chatID, state)
			h.reply(ctx, chatID, textRetrySecret)
		default:
			h.reply(ctx, chatID, textAnswerYesNo)
		}
	}
}

func (h *Handler) credentials(ctx context.Context, chatID portal.ChatID) (portal.Credentials, bool) {
	creds, ok := h.core.Credentials(chatID)
	if !ok {
		h.tel.ReportDebug("no credentials", chatID)
		h.reply(ctx, chatID, textNeedLogin)
		return portal.Credentials{}, false
	}
	return creds, true
}

func (h *Handler) listCourses(ctx context.Context, chatID portal.ChatID) {
	creds, ok := h.credentials(ctx, chatID)
	if !ok {
		return
	}
	h.reply(ctx, chatID, textConnecting)

	courses, err := h.core.GetCourses(ctx, chatID, creds)
	if err != nil {
		h.tel.ReportWarning(report_handler_courses, err, chatID)
		h.reply(ctx, chatID, errorText("obteniendo tus cursos", err))
		return
	}
	if len(courses) == 0 {
		h.reply(ctx, chatID, textNoCourses)
		return
	}
	h.reply(ctx, chatID, courseList(courses))
}

func (h *Handler) handleSelection(ctx context.Context, chatID portal.ChatID, text string) {
	var ref portal.CourseRef
	var err error

	number, convErr := strconv.Atoi(text)
	if convErr == nil {
		// the list shown to users starts at 1
		ref, err = h.core.SelectCourse(chatID, number-1)
	} else {
		ref, err = h.core.FindCourse(chatID, text)
	}
	switch {
	case errors.Is(err, portal.ErrSelectionOutOfRange):
		h.reply(ctx, chatID, textOutOfRange)
		return
	case errors.Is(err, portal.ErrCourseNotFound):
		h.reply(ctx, chatID, textUnknownCourse)
		return
	case err != nil:
		h.reply(ctx, chatID, textHint)
		return
	}

	creds, ok := h.credentials(ctx, chatID)
	if !ok {
		return
	}
	h.reply(ctx, chatID, fetchingGrades(ref))

	grades, err := h.core.GetGradeDetail(ctx, chatID, creds, ref)
	if errors.Is(err, portal.ErrStaleCourse) {
		h.reply(ctx, chatID, textStaleCourse)
		return
	}
	if err != nil {
		h.tel.ReportWarning(report_handler_grades, fmt.Errorf("%s: %w", ref.DisplayName, err), chatID)
		h.reply(ctx, chatID, errorText("obteniendo el detalle de notas", err))
		return
	}
	h.reply(ctx, chatID, gradeDetail(ref, grades))
}
