package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// Callback data for inline buttons.
const (
	cbToggle     = "notify:toggle"
	cbLeadPrefix = "lead:"
)

// UI texts in English
const (
	startText = "👋 I book the laundry room for you.\n\n" +
		"Reserve a slot of up to one hour, see or cancel your bookings, " +
		"and I will remind you before your slot starts and ends."
	helpText = "Commands:\n" +
		"/reserve <start> <end>: book a slot, e.g. /reserve 2025-05-05T18:00 2025-05-05T19:00\n" +
		"/view: your reservations\n" +
		"/schedule: all upcoming bookings of the room\n" +
		"/cancel <n>: cancel reservation number n from /view\n" +
		"/settings: reminder settings\n" +
		"/register: register your room\n" +
		"/token: get a token for the web API"
	unknownCommandText = "Unknown command. Send /help to see what I can do."
	reserveUsageText   = "Usage: /reserve <start> <end>\nTimes look like 2025-05-05T18:00 (local time)."
	cancelUsageText    = "Usage: /cancel <n>, where n is the number shown by /view."
	registerFormatText = "Please send: Room FirstName LastName Phone\nFor example: 412 Ivan Petrov +79990000000"
	noReservationsText = "You have no reservations."
	viewTitle          = "🧺 Your reservations:"
	scheduleTitle      = "📅 Booked slots:"
	scheduleEmptyText  = "Nothing is booked. Every slot is free."
	apiDisabledText    = "The web API is not enabled."
	tokenFmt           = "🔑 Your web API token:\n%s\n\nSend it as: Authorization: Bearer <token>"
	leadPromptText     = "How many minutes before start and end should I remind you? Send a whole number."

	reminderStartText = "⏰ Your reservation is starting soon."
	reminderEndText   = "⏰ Your reservation is ending soon."
)

var messages = map[domain.MessageKey]string{
	domain.MsgReserveSuccess:             "✅ Reservation confirmed.",
	domain.MsgReservePastStart:           "The start time has already passed. Please choose a future slot.",
	domain.MsgReserveInvertedInterval:    "The end time must be after the start time.",
	domain.MsgReserveTooLong:             "A reservation cannot be longer than one hour.",
	domain.MsgReserveOverlap:             "This slot overlaps one of your reservations.",
	domain.MsgRegistrationPrompt:         "Please register first. Send: Room FirstName LastName Phone",
	domain.MsgRegisterSuccess:            "✅ You are registered.",
	domain.MsgRegisterDuplicate:          "You are already registered.",
	domain.MsgCancelSuccess:              "🗑 Reservation cancelled.",
	domain.MsgCancelNotFound:             "No such reservation. Check the number with /view.",
	domain.MsgSettingsSuccess:            "✅ Settings saved.",
	domain.MsgSettingsInvalidLeadMinutes: "Minutes must be a whole number from 0 to 10080 (one week).",
	domain.MsgGenericError:               "Something went wrong. Please try again later.",
}

func textFor(key domain.MessageKey) string {
	if s, ok := messages[key]; ok {
		return s
	}
	return messages[domain.MsgGenericError]
}

func reminderText(kind domain.Kind) string {
	if kind == domain.KindEnd {
		return reminderEndText
	}
	return reminderStartText
}

func settingsText(p domain.NotificationPreference) string {
	state := "✅ Enabled"
	if !p.Enabled {
		state = "⏸ Disabled"
	}
	return fmt.Sprintf("🔔 Reminders: %s\n⏲️ Remind %d min before start and end", state, p.LeadMinutes)
}

// mainMenuKeyboard builds the reply keyboard with the everyday commands.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/view"),
			tgbotapi.NewKeyboardButton("/settings"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
}

// leadPresets are offered as one-tap lead times, in minutes.
var leadPresets = []int{5, 10, 15, 30, 60}

func settingsInlineKeyboard(p domain.NotificationPreference) tgbotapi.InlineKeyboardMarkup {
	toggle := "⏸ Disable reminders"
	if !p.Enabled {
		toggle = "🔔 Enable reminders"
	}
	presets := make([]tgbotapi.InlineKeyboardButton, 0, len(leadPresets))
	for _, m := range leadPresets {
		label := fmt.Sprintf("%dm", m)
		if m == p.LeadMinutes {
			label = "• " + label
		}
		presets = append(presets, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbLeadPrefix, m)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, cbToggle),
		),
		tgbotapi.NewInlineKeyboardRow(presets...),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", cbLeadPrefix+"custom"),
		),
	)
}
