package domain

import "time"

// User is a registered resident allowed to book the laundry room.
type User struct {
	ID          int64
	ExternalKey string // Telegram user id or API subject; unique
	DisplayName string
	Room        string
	Contact     string // phone number
	CreatedAt   time.Time
}

// Address returns the delivery address used for reminders.
// For Telegram private chats the chat id equals the user id.
func (u *User) Address() string {
	return u.ExternalKey
}

const (
	DefaultNotificationsEnabled = true
	DefaultLeadMinutes          = 15

	// MaxLeadMinutes caps the lead time at one week.
	MaxLeadMinutes = 7 * 24 * 60
)

// NotificationPreference holds per-user reminder settings.
type NotificationPreference struct {
	UserID      int64
	Enabled     bool
	LeadMinutes int // minutes before start/end, 0..MaxLeadMinutes
}

// DefaultPreference returns the settings a user gets on first access.
func DefaultPreference(userID int64) NotificationPreference {
	return NotificationPreference{
		UserID:      userID,
		Enabled:     DefaultNotificationsEnabled,
		LeadMinutes: DefaultLeadMinutes,
	}
}

// ValidLeadMinutes reports whether m is an accepted lead time.
func ValidLeadMinutes(m int) bool {
	return m >= 0 && m <= MaxLeadMinutes
}

// Lead returns the lead time as a duration, clamped to [0, MaxLeadMinutes].
func (p NotificationPreference) Lead() time.Duration {
	m := p.LeadMinutes
	switch {
	case m < 0:
		m = 0
	case m > MaxLeadMinutes:
		m = MaxLeadMinutes
	}
	return time.Duration(m) * time.Minute
}
