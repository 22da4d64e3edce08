package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// Pending state keys used in conversational flows.
const (
	pendingRegister = "await_registration_text"
	pendingLead     = "await_lead_minutes_text"
)

// botAPI is the part of *tgbotapi.BotAPI the router uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Service is implemented by reservation.Manager.
type Service interface {
	RegisterUser(ctx context.Context, key string, reg domain.Registration) (*domain.User, error)
	LookupUser(ctx context.Context, key string) (*domain.User, error)
	CreateReservation(ctx context.Context, key string, iv domain.Interval) (*domain.Reservation, error)
	ListReservations(ctx context.Context, key string) ([]domain.Reservation, error)
	ListAllReservations(ctx context.Context) ([]domain.Reservation, error)
	CancelReservationByOrdinal(ctx context.Context, key string, ordinal int) (*domain.Reservation, error)
	GetOrCreatePreferences(ctx context.Context, key string) (domain.NotificationPreference, error)
	UpdatePreferences(ctx context.Context, key string, enabled bool, leadMinutes int) (domain.NotificationPreference, error)
}

// TokenIssuer signs web API tokens for a user key. Implemented by
// api.TokenProvider.
type TokenIssuer interface {
	Sign(userKey string) (string, error)
}

type pending struct {
	state     string
	expiresAt time.Time
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot    botAPI
	log    *zap.Logger
	svc    Service
	tokens TokenIssuer // nil when the web API is disabled
	loc    *time.Location
	ttl    time.Duration
	now    func() time.Time
	state  map[int64]pending // chatID -> pending state
	mu     sync.Mutex
}

// NewRouter creates a new Telegram router. Times typed by users are read in
// loc; an unanswered prompt is forgotten after ttl. tokens may be nil.
func NewRouter(bot botAPI, log *zap.Logger, svc Service, tokens TokenIssuer, loc *time.Location, ttl time.Duration) *Router {
	if loc == nil {
		loc = time.UTC
	}
	return &Router{
		bot:    bot,
		log:    log,
		svc:    svc,
		tokens: tokens,
		loc:    loc,
		ttl:    ttl,
		now:    time.Now,
		state:  make(map[int64]pending),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = pending{state: s, expiresAt: r.now().Add(r.ttl)}
}

// takePending returns and clears the chat's pending state. Expired states
// are dropped.
func (r *Router) takePending(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.state[chatID]
	if !ok {
		return ""
	}
	delete(r.state, chatID)
	if r.ttl > 0 && !r.now().Before(p.expiresAt) {
		return ""
	}
	return p.state
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// SweepPending drops expired prompts and reports how many were removed.
func (r *Router) SweepPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ttl <= 0 {
		return 0
	}
	now := r.now()
	n := 0
	for id, p := range r.state {
		if !now.Before(p.expiresAt) {
			delete(r.state, id)
			n++
		}
	}
	return n
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)
		cmd, args := splitCommand(text)

		// Any command abandons an unfinished prompt.
		if cmd != "" {
			r.clearPending(chatID)
		}

		switch cmd {
		case "/start":
			r.handleStart(ctx, chatID)
		case "/register":
			r.handleRegister(ctx, chatID, args)
		case "/reserve":
			r.handleReserve(ctx, chatID, args)
		case "/view":
			r.handleView(ctx, chatID)
		case "/schedule":
			r.handleSchedule(ctx, chatID)
		case "/cancel":
			r.handleCancel(ctx, chatID, args)
		case "/settings":
			r.handleSettings(ctx, chatID)
		case "/token":
			r.handleToken(ctx, chatID)
		case "/help":
			r.sendText(chatID, helpText)
		case "":
			// Free-form text answers a pending prompt
			r.handleFreeForm(ctx, chatID, text)
		default:
			r.sendText(chatID, unknownCommandText)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case data == cbToggle:
			r.handleToggleCallback(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, cbLeadPrefix):
			r.handleLeadCallback(ctx, chatID, data, cb.ID)
		default:
			// Unknown callback, ignore silently
		}
	}
}

// splitCommand separates "/cmd@bot a b" into "/cmd" and ["a", "b"].
// Text that is not a command yields an empty cmd.
func splitCommand(text string) (string, []string) {
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}
