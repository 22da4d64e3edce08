package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/rdavydov/node-laundry/internal/domain"
	"github.com/rdavydov/node-laundry/internal/reservation"
)

func userKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send message failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) sendKey(chatID int64, key domain.MessageKey) {
	r.sendText(chatID, textFor(key))
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// requireUser resolves the chat's user. Unknown users get the registration
// prompt and a pending registration.
func (r *Router) requireUser(ctx context.Context, chatID int64) bool {
	_, err := r.svc.LookupUser(ctx, userKey(chatID))
	if err == nil {
		return true
	}
	r.replyError(chatID, err)
	return false
}

// replyError renders a failed outcome. Unknown users are asked to register.
func (r *Router) replyError(chatID int64, err error) {
	key := domain.KeyFor(err)
	if key == domain.MsgRegistrationPrompt {
		r.setPending(chatID, pendingRegister)
	}
	r.sendKey(chatID, key)
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	if !r.requireUser(ctx, chatID) {
		return
	}
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleRegister(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		if _, err := r.svc.LookupUser(ctx, userKey(chatID)); err == nil {
			r.sendKey(chatID, domain.MsgRegisterDuplicate)
			return
		}
		r.setPending(chatID, pendingRegister)
		r.sendKey(chatID, domain.MsgRegistrationPrompt)
		return
	}
	r.register(ctx, chatID, strings.Join(args, " "))
}

func (r *Router) register(ctx context.Context, chatID int64, text string) {
	reg, err := domain.ParseRegistration(text)
	if err != nil {
		r.setPending(chatID, pendingRegister)
		r.sendText(chatID, registerFormatText)
		return
	}
	_, err = r.svc.RegisterUser(ctx, userKey(chatID), reg)
	if ok, key := reservation.Outcome(err, domain.MsgRegisterSuccess); !ok {
		r.sendKey(chatID, key)
		return
	}
	msg := tgbotapi.NewMessage(chatID, textFor(domain.MsgRegisterSuccess))
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleReserve(ctx context.Context, chatID int64, args []string) {
	if len(args) != 2 {
		r.sendText(chatID, reserveUsageText)
		return
	}
	iv, err := domain.ParseInterval(args[0], args[1], r.loc)
	if err != nil {
		r.sendText(chatID, reserveUsageText)
		return
	}
	res, err := r.svc.CreateReservation(ctx, userKey(chatID), iv)
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	r.sendText(chatID, textFor(domain.MsgReserveSuccess)+"\n"+domain.FormatSlot(res.Interval, r.loc))
}

func (r *Router) handleView(ctx context.Context, chatID int64) {
	list, err := r.svc.ListReservations(ctx, userKey(chatID))
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	if len(list) == 0 {
		r.sendText(chatID, noReservationsText)
		return
	}
	var b strings.Builder
	b.WriteString(viewTitle)
	for i, res := range list {
		fmt.Fprintf(&b, "\n%d. %s", i+1, domain.FormatSlot(res.Interval, r.loc))
	}
	r.sendText(chatID, b.String())
}

// handleSchedule shows the room's upcoming bookings so free slots are visible.
func (r *Router) handleSchedule(ctx context.Context, chatID int64) {
	if !r.requireUser(ctx, chatID) {
		return
	}
	all, err := r.svc.ListAllReservations(ctx)
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	now := r.now()
	var b strings.Builder
	for _, res := range all {
		if !res.End.After(now) {
			continue
		}
		b.WriteString("\n• ")
		b.WriteString(domain.FormatSlot(res.Interval, r.loc))
	}
	if b.Len() == 0 {
		r.sendText(chatID, scheduleEmptyText)
		return
	}
	r.sendText(chatID, scheduleTitle+b.String())
}

// handleToken issues a web API token whose subject is this chat.
func (r *Router) handleToken(ctx context.Context, chatID int64) {
	if r.tokens == nil {
		r.sendText(chatID, apiDisabledText)
		return
	}
	if !r.requireUser(ctx, chatID) {
		return
	}
	token, err := r.tokens.Sign(userKey(chatID))
	if err != nil {
		r.log.Error("sign api token failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendKey(chatID, domain.MsgGenericError)
		return
	}
	r.sendText(chatID, fmt.Sprintf(tokenFmt, token))
}

func (r *Router) handleCancel(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		r.sendText(chatID, cancelUsageText)
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		r.sendText(chatID, cancelUsageText)
		return
	}
	res, err := r.svc.CancelReservationByOrdinal(ctx, userKey(chatID), n)
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	r.sendText(chatID, textFor(domain.MsgCancelSuccess)+"\n"+domain.FormatSlot(res.Interval, r.loc))
}

// --- Settings ---

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	p, err := r.svc.GetOrCreatePreferences(ctx, userKey(chatID))
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, settingsText(p))
	msg.ReplyMarkup = settingsInlineKeyboard(p)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleToggleCallback(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	p, err := r.svc.GetOrCreatePreferences(ctx, userKey(chatID))
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	r.updatePreferences(ctx, chatID, !p.Enabled, p.LeadMinutes)
}

func (r *Router) handleLeadCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	val := strings.TrimPrefix(data, cbLeadPrefix)
	if val == "custom" {
		if !r.requireUser(ctx, chatID) {
			return
		}
		r.setPending(chatID, pendingLead)
		r.sendText(chatID, leadPromptText)
		return
	}
	minutes, err := domain.ParseLeadMinutes(val)
	if err != nil {
		r.sendKey(chatID, domain.MsgSettingsInvalidLeadMinutes)
		return
	}
	p, err := r.svc.GetOrCreatePreferences(ctx, userKey(chatID))
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	r.updatePreferences(ctx, chatID, p.Enabled, minutes)
}

func (r *Router) updatePreferences(ctx context.Context, chatID int64, enabled bool, minutes int) {
	p, err := r.svc.UpdatePreferences(ctx, userKey(chatID), enabled, minutes)
	if err != nil {
		r.replyError(chatID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, textFor(domain.MsgSettingsSuccess)+"\n\n"+settingsText(p))
	msg.ReplyMarkup = settingsInlineKeyboard(p)
	_, _ = r.bot.Send(msg)
}

// --- Free-form dispatcher (for all prompted inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.takePending(chatID) {
	case pendingRegister:
		r.register(ctx, chatID, text)

	case pendingLead:
		minutes, err := domain.ParseLeadMinutes(text)
		if err != nil {
			r.sendKey(chatID, domain.MsgSettingsInvalidLeadMinutes)
			return
		}
		p, err := r.svc.GetOrCreatePreferences(ctx, userKey(chatID))
		if err != nil {
			r.replyError(chatID, err)
			return
		}
		r.updatePreferences(ctx, chatID, p.Enabled, minutes)

	default:
		r.sendText(chatID, helpText)
	}
}
