package types

import "time"

// Notification channel types supported by the tracker.
const (
	ChannelTypeSMS     = "SMS"
	ChannelTypeDiscord = "DISCORD"
)

// Goal tracking frequencies.
const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

// User is the root of the entity hierarchy. Users are created once at signup
// and are immutable afterwards; the email is globally unique.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Character is a RuneScape account name tracked under a user. The name is
// unique within the owning user.
type Character struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Goal is a target metric for a character, for example an experience total
// in a skill. Goals are scoped to (user, character) and identified by an
// opaque goal ID.
type Goal struct {
	UserID        string     `json:"userId"`
	CharacterName string     `json:"characterName"`
	ID            string     `json:"id"`
	Skill         string     `json:"skill"`
	TargetType    string     `json:"targetType"`
	TargetValue   int64      `json:"targetValue"`
	TargetDate    *time.Time `json:"targetDate,omitempty"`
	// NotificationChannelTypes lists the channel types (for example
	// ChannelTypeSMS) that should receive updates for this goal.
	NotificationChannelTypes []string  `json:"notificationChannels,omitempty"`
	Frequency                string    `json:"frequency,omitempty"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// GoalInput carries the caller-supplied fields of a new goal. ID is
// optional; a fresh one is generated when it is blank.
type GoalInput struct {
	ID                       string
	Skill                    string
	TargetType               string
	TargetValue              int64
	TargetDate               *time.Time
	NotificationChannelTypes []string
	Frequency                string
}

// ProgressSample is one timestamped measurement of a goal's current value.
// Samples are append-only: once written they are never mutated or deleted,
// except through backend TTL-based retention.
type ProgressSample struct {
	UserID        string    `json:"userId"`
	CharacterName string    `json:"characterName"`
	GoalID        string    `json:"goalId"`
	Value         int64     `json:"progressValue"`
	Timestamp     time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"createdAt"`
}

// GoalProgress is a denormalized boundary sample for a goal: the most recent
// sample (latest) or the first ever recorded (earliest). Maintained on every
// write so readers get the boundary in one point read instead of a range
// scan over the sample history.
type GoalProgress struct {
	Value     int64     `json:"progressValue"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotificationChannel is a per-user delivery configuration. At most one
// channel exists per (user, channel type); re-creating a type replaces the
// previous configuration.
type NotificationChannel struct {
	UserID      string    `json:"userId"`
	ChannelType string    `json:"channelType"`
	Identifier  string    `json:"identifier"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
