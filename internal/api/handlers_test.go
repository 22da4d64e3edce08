package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// --- mocks ---

type mockSvc struct{ mock.Mock }

func (m *mockSvc) RegisterUser(ctx context.Context, key string, reg domain.Registration) (*domain.User, error) {
	args := m.Called(ctx, key, reg)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSvc) LookupUser(ctx context.Context, key string) (*domain.User, error) {
	args := m.Called(ctx, key)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSvc) CreateReservation(ctx context.Context, key string, iv domain.Interval) (*domain.Reservation, error) {
	args := m.Called(ctx, key, iv)
	if r, _ := args.Get(0).(*domain.Reservation); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSvc) ListReservations(ctx context.Context, key string) ([]domain.Reservation, error) {
	args := m.Called(ctx, key)
	list, _ := args.Get(0).([]domain.Reservation)
	return list, args.Error(1)
}

func (m *mockSvc) ListAllReservations(ctx context.Context) ([]domain.Reservation, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]domain.Reservation)
	return list, args.Error(1)
}

func (m *mockSvc) CancelReservation(ctx context.Context, key string, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, key, id)
	if r, _ := args.Get(0).(*domain.Reservation); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSvc) GetOrCreatePreferences(ctx context.Context, key string) (domain.NotificationPreference, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.NotificationPreference), args.Error(1)
}

func (m *mockSvc) UpdatePreferences(ctx context.Context, key string, enabled bool, leadMinutes int) (domain.NotificationPreference, error) {
	args := m.Called(ctx, key, enabled, leadMinutes)
	return args.Get(0).(domain.NotificationPreference), args.Error(1)
}

type mockPending struct{ mock.Mock }

func (m *mockPending) PendingForUser(userID int64) []domain.ScheduledNotification {
	list, _ := m.Called(userID).Get(0).([]domain.ScheduledNotification)
	return list
}

// --- helpers ---

const secret = "test-secret"

var t0 = time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)

func newTestServer(svc *mockSvc, pending *mockPending, limiter *RateLimiter) (http.Handler, *TokenProvider) {
	tokens := NewTokenProvider(secret, time.Hour)
	return NewRouter(Deps{
		Handler:        NewHandler(svc, pending),
		Tokens:         tokens,
		Limiter:        limiter,
		AllowedOrigins: []string{"*"},
		Log:            zap.NewNop(),
	}), tokens
}

// do serves one request as the given user key; an empty key sends no token.
func do(t *testing.T, h http.Handler, tokens *TokenProvider, method, target, key string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	if key != "" {
		token, err := tokens.Sign(key)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

// --- tests ---

func TestHealth_IsPublic(t *testing.T) {
	h, tokens := newTestServer(&mockSvc{}, &mockPending{}, nil)
	rr := do(t, h, tokens, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeEnvelope(t, rr).Success)
}

func TestRouter_WithoutTokensMountsOnlyHealth(t *testing.T) {
	h := NewRouter(Deps{Log: zap.NewNop()})
	r := httptest.NewRequest(http.MethodGet, "/v1/reservations", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuth_RejectsMissingAndForeignTokens(t *testing.T) {
	h, tokens := newTestServer(&mockSvc{}, &mockPending{}, nil)

	rr := do(t, h, tokens, http.MethodGet, "/v1/reservations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	foreign, err := NewTokenProvider("other-secret", time.Hour).Sign("A")
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/v1/reservations", nil)
	r.Header.Set("Authorization", "Bearer "+foreign)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTokenProvider_ExpiredTokenRejected(t *testing.T) {
	p := NewTokenProvider(secret, -time.Minute)
	token, err := p.Sign("A")
	require.NoError(t, err)
	_, err = p.Verify(token)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	reg := domain.Registration{DisplayName: "Ivan Petrov", Room: "412", Contact: "+79990000000"}
	svc.On("RegisterUser", mock.Anything, "A", reg).
		Return(&domain.User{ID: 1, ExternalKey: "A", DisplayName: reg.DisplayName, Room: reg.Room, Contact: reg.Contact}, nil).Once()
	svc.On("RegisterUser", mock.Anything, "A", reg).Return(nil, domain.Reject(domain.ReasonAlreadyRegistered)).Once()

	body := RegisterRequest{DisplayName: reg.DisplayName, Room: reg.Room, Contact: reg.Contact}
	rr := do(t, h, tokens, http.MethodPost, "/v1/users", "A", body)
	assert.Equal(t, http.StatusCreated, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.True(t, env.Success)
	assert.Equal(t, string(domain.MsgRegisterSuccess), env.Message)

	rr = do(t, h, tokens, http.MethodPost, "/v1/users", "A", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, string(domain.MsgRegisterDuplicate), decodeEnvelope(t, rr).Message)
	svc.AssertExpectations(t)
}

func TestRegister_ValidationFailure(t *testing.T) {
	h, tokens := newTestServer(&mockSvc{}, &mockPending{}, nil)

	rr := do(t, h, tokens, http.MethodPost, "/v1/users", "A", RegisterRequest{Room: "412"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Equal(t, "validationError", env.Message)
	assert.Contains(t, env.Error, "DisplayName")
}

func TestCreateReservation(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	iv := domain.NewInterval(t0.Add(time.Hour), t0.Add(2*time.Hour))
	svc.On("CreateReservation", mock.Anything, "A", iv).
		Return(&domain.Reservation{ID: 7, UserID: 1, Interval: iv}, nil)

	rr := do(t, h, tokens, http.MethodPost, "/v1/reservations", "A", ReservationRequest{Start: iv.Start, End: iv.End})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    ReservationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, string(domain.MsgReserveSuccess), resp.Message)
	assert.Equal(t, int64(7), resp.Data.ID)
	assert.True(t, iv.Start.Equal(resp.Data.Start))
	svc.AssertExpectations(t)
}

func TestCreateReservation_RejectionsMapToStatus(t *testing.T) {
	cases := []struct {
		reason domain.Reason
		status int
		key    domain.MessageKey
	}{
		{domain.ReasonOverlap, http.StatusConflict, domain.MsgReserveOverlap},
		{domain.ReasonTooLong, http.StatusUnprocessableEntity, domain.MsgReserveTooLong},
		{domain.ReasonPastStart, http.StatusUnprocessableEntity, domain.MsgReservePastStart},
		{domain.ReasonInvertedInterval, http.StatusUnprocessableEntity, domain.MsgReserveInvertedInterval},
		{domain.ReasonUnknownUser, http.StatusNotFound, domain.MsgRegistrationPrompt},
	}
	for _, tc := range cases {
		t.Run(string(tc.reason), func(t *testing.T) {
			svc := &mockSvc{}
			h, tokens := newTestServer(svc, &mockPending{}, nil)
			svc.On("CreateReservation", mock.Anything, "A", mock.Anything).Return(nil, domain.Reject(tc.reason))

			rr := do(t, h, tokens, http.MethodPost, "/v1/reservations", "A",
				ReservationRequest{Start: t0, End: t0.Add(time.Hour)})
			assert.Equal(t, tc.status, rr.Code)
			env := decodeEnvelope(t, rr)
			assert.False(t, env.Success)
			assert.Equal(t, string(tc.key), env.Message)
		})
	}
}

func TestCreateReservation_PersistenceIsGeneric(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	svc.On("CreateReservation", mock.Anything, "A", mock.Anything).Return(nil, domain.ErrPersistence)

	rr := do(t, h, tokens, http.MethodPost, "/v1/reservations", "A", ReservationRequest{Start: t0, End: t0.Add(time.Hour)})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, string(domain.MsgGenericError), decodeEnvelope(t, rr).Message)
}

func TestCreateReservation_BadBody(t *testing.T) {
	h, tokens := newTestServer(&mockSvc{}, &mockPending{}, nil)

	rr := do(t, h, tokens, http.MethodPost, "/v1/reservations", "A", "not-json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, tokens, http.MethodPost, "/v1/reservations", "A", map[string]string{"start": t0.Format(time.RFC3339)})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestListReservations_EmptyIsArray(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	svc.On("ListReservations", mock.Anything, "A").Return([]domain.Reservation{}, nil)

	rr := do(t, h, tokens, http.MethodGet, "/v1/reservations", "A", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rr.Body.String())
}

func TestSchedule_HidesOwners(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	svc.On("LookupUser", mock.Anything, "A").Return(&domain.User{ID: 3, ExternalKey: "A"}, nil)
	svc.On("ListAllReservations", mock.Anything).Return([]domain.Reservation{
		{ID: 1, UserID: 4, Interval: domain.NewInterval(t0, t0.Add(time.Hour))},
		{ID: 2, UserID: 3, Interval: domain.NewInterval(t0.Add(time.Hour), t0.Add(2*time.Hour))},
	}, nil)

	rr := do(t, h, tokens, http.MethodGet, "/v1/schedule", "A", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":[
		{"start":"2025-05-05T12:00:00Z","end":"2025-05-05T13:00:00Z","mine":false},
		{"start":"2025-05-05T13:00:00Z","end":"2025-05-05T14:00:00Z","mine":true}
	]}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestSchedule_UnknownCaller(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	svc.On("LookupUser", mock.Anything, "B").Return(nil, domain.Reject(domain.ReasonUnknownUser))

	rr := do(t, h, tokens, http.MethodGet, "/v1/schedule", "B", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.False(t, decodeEnvelope(t, rr).Success)
	svc.AssertNotCalled(t, "ListAllReservations", mock.Anything)
}

func TestCancelReservation(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	iv := domain.NewInterval(t0.Add(time.Hour), t0.Add(2*time.Hour))
	svc.On("CancelReservation", mock.Anything, "A", int64(7)).Return(&domain.Reservation{ID: 7, Interval: iv}, nil)
	svc.On("CancelReservation", mock.Anything, "A", int64(8)).Return(nil, domain.Reject(domain.ReasonNotFound))

	rr := do(t, h, tokens, http.MethodDelete, "/v1/reservations/7", "A", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(domain.MsgCancelSuccess), decodeEnvelope(t, rr).Message)

	rr = do(t, h, tokens, http.MethodDelete, "/v1/reservations/8", "A", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, string(domain.MsgCancelNotFound), decodeEnvelope(t, rr).Message)

	rr = do(t, h, tokens, http.MethodDelete, "/v1/reservations/abc", "A", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertExpectations(t)
}

func TestSettings(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, nil)
	svc.On("GetOrCreatePreferences", mock.Anything, "A").Return(domain.DefaultPreference(1), nil)
	svc.On("UpdatePreferences", mock.Anything, "A", false, 30).
		Return(domain.NotificationPreference{UserID: 1, Enabled: false, LeadMinutes: 30}, nil)
	svc.On("UpdatePreferences", mock.Anything, "A", true, -1).
		Return(domain.NotificationPreference{}, domain.Reject(domain.ReasonInvalidLeadMinutes))

	rr := do(t, h, tokens, http.MethodGet, "/v1/settings", "A", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":{"enabled":true,"leadMinutes":15}}`, rr.Body.String())

	rr = do(t, h, tokens, http.MethodPut, "/v1/settings", "A", `{"enabled":false,"leadMinutes":30}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(domain.MsgSettingsSuccess), decodeEnvelope(t, rr).Message)

	rr = do(t, h, tokens, http.MethodPut, "/v1/settings", "A", `{"enabled":true,"leadMinutes":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, string(domain.MsgSettingsInvalidLeadMinutes), decodeEnvelope(t, rr).Message)

	rr = do(t, h, tokens, http.MethodPut, "/v1/settings", "A", `{"enabled":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertExpectations(t)
}

func TestListNotifications(t *testing.T) {
	svc := &mockSvc{}
	pending := &mockPending{}
	h, tokens := newTestServer(svc, pending, nil)
	svc.On("LookupUser", mock.Anything, "A").Return(&domain.User{ID: 3, ExternalKey: "A"}, nil)
	pending.On("PendingForUser", int64(3)).Return([]domain.ScheduledNotification{
		{ReservationID: 9, UserID: 3, Kind: domain.KindStart, FireAt: t0},
	})

	rr := do(t, h, tokens, http.MethodGet, "/v1/notifications", "A", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":[{"reservationId":9,"kind":"start","fireAt":"2025-05-05T12:00:00Z"}]}`, rr.Body.String())
	pending.AssertExpectations(t)
}

func TestRateLimit_AppliesToMutations(t *testing.T) {
	svc := &mockSvc{}
	h, tokens := newTestServer(svc, &mockPending{}, NewRateLimiter(rate.Limit(0.001), 1))
	svc.On("CreateReservation", mock.Anything, "A", mock.Anything).Return(nil, domain.Reject(domain.ReasonOverlap))
	svc.On("ListReservations", mock.Anything, "A").Return([]domain.Reservation{}, nil)

	body := ReservationRequest{Start: t0, End: t0.Add(time.Hour)}
	rr := do(t, h, tokens, http.MethodPost, "/v1/reservations", "A", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = do(t, h, tokens, http.MethodPost, "/v1/reservations", "A", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = do(t, h, tokens, http.MethodGet, "/v1/reservations", "A", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
