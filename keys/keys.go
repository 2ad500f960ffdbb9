// Package keys builds and parses the composite sort keys of the goal-tracker
// table. Every row lives under the partition key "USER#<userId>"; the sort
// key encodes the entity kind and its identity as #-joined segments:
//
//	User metadata:         METADATA
//	Notification channel:  NOTIFICATION#<channelType>
//	Character metadata:    CHARACTER#METADATA#<characterName>
//	Goal metadata:         CHARACTER#<characterName>#GOAL#METADATA#<goalId>
//	Progress sample:       CHARACTER#<characterName>#GOAL#<goalId>#<timestamp>
//	Latest progress:       CHARACTER#<characterName>#GOAL#<goalId>#LATEST
//	Earliest progress:     CHARACTER#<characterName>#GOAL#<goalId>#EARLIEST
//
// Key segments must not contain the # delimiter; builders reject such input
// so that no two identity tuples can collapse to the same string. Timestamps
// are formatted as RFC 3339 UTC, which sorts lexicographically in
// chronological order.
package keys

import (
	"strings"
	"time"

	"github.com/osrsgoaltracker/goaldao/types"
)

const (
	metadataSegment     = "METADATA"
	notificationSegment = "NOTIFICATION"
	characterSegment    = "CHARACTER"
	goalSegment         = "GOAL"
	latestSegment       = "LATEST"
	earliestSegment     = "EARLIEST"

	delimiter = "#"

	userPrefix = "USER" + delimiter
)

// Kind identifies the entity kind encoded in a sort key.
type Kind int

const (
	KindUnknown Kind = iota
	KindUserMetadata
	KindNotificationChannel
	KindCharacterMetadata
	KindGoalMetadata
	KindLatestProgress
	KindEarliestProgress
	KindProgressSample
)

// String returns the kind name, for logging.
func (k Kind) String() string {
	switch k {
	case KindUserMetadata:
		return "UserMetadata"
	case KindNotificationChannel:
		return "NotificationChannel"
	case KindCharacterMetadata:
		return "CharacterMetadata"
	case KindGoalMetadata:
		return "GoalMetadata"
	case KindLatestProgress:
		return "LatestProgress"
	case KindEarliestProgress:
		return "EarliestProgress"
	case KindProgressSample:
		return "ProgressSample"
	default:
		return "Unknown"
	}
}

// ParsedKey is the result of [Parse]: the entity kind and the identifying
// segments embedded in the sort key. Fields not present in the key are zero.
type ParsedKey struct {
	Kind          Kind
	ChannelType   string
	CharacterName string
	GoalID        string
	Timestamp     time.Time
}

func validateSegment(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return types.NewValidationError("%s cannot be empty", name)
	}
	if strings.Contains(value, delimiter) {
		return types.NewValidationError("%s cannot contain '%s'", name, delimiter)
	}
	return nil
}

func validateCharacterName(characterName string) error {
	if err := validateSegment("character name", characterName); err != nil {
		return err
	}
	// A character literally named METADATA would make its goal and
	// progress keys ambiguous with the character-metadata key pattern.
	if characterName == metadataSegment {
		return types.NewValidationError("character name cannot be %q", metadataSegment)
	}
	return nil
}

func validateGoalID(goalID string) error {
	if err := validateSegment("goal ID", goalID); err != nil {
		return err
	}
	// A goal literally named METADATA would collide with the goal-metadata
	// key pattern.
	if goalID == metadataSegment {
		return types.NewValidationError("goal ID cannot be %q", metadataSegment)
	}
	return nil
}

// UserPartitionKey builds the partition key for a user's rows.
func UserPartitionKey(userID string) (string, error) {
	if err := validateSegment("user ID", userID); err != nil {
		return "", err
	}
	return userPrefix + userID, nil
}

// UserMetadata returns the sort key of the user metadata row.
func UserMetadata() string {
	return metadataSegment
}

// NotificationChannel builds the sort key of a notification channel row.
func NotificationChannel(channelType string) (string, error) {
	if err := validateSegment("channel type", channelType); err != nil {
		return "", err
	}
	return notificationSegment + delimiter + channelType, nil
}

// NotificationChannelPrefix returns the sort-key prefix shared by all of a
// user's notification channel rows.
func NotificationChannelPrefix() string {
	return notificationSegment + delimiter
}

// CharacterMetadata builds the sort key of a character metadata row.
func CharacterMetadata(characterName string) (string, error) {
	if err := validateCharacterName(characterName); err != nil {
		return "", err
	}
	return characterSegment + delimiter + metadataSegment + delimiter + characterName, nil
}

// CharacterMetadataPrefix returns the sort-key prefix shared by all of a
// user's character metadata rows.
func CharacterMetadataPrefix() string {
	return characterSegment + delimiter + metadataSegment + delimiter
}

// GoalMetadata builds the sort key of a goal metadata row.
func GoalMetadata(characterName, goalID string) (string, error) {
	prefix, err := GoalMetadataPrefix(characterName)
	if err != nil {
		return "", err
	}
	if err := validateGoalID(goalID); err != nil {
		return "", err
	}
	return prefix + goalID, nil
}

// GoalMetadataPrefix returns the sort-key prefix shared by all goal metadata
// rows of a character.
func GoalMetadataPrefix(characterName string) (string, error) {
	if err := validateCharacterName(characterName); err != nil {
		return "", err
	}
	return characterSegment + delimiter + characterName + delimiter +
		goalSegment + delimiter + metadataSegment + delimiter, nil
}

// GoalProgressPrefix returns the sort-key prefix shared by a goal's progress
// rows (samples plus the LATEST and EARLIEST pointers).
func GoalProgressPrefix(characterName, goalID string) (string, error) {
	if err := validateCharacterName(characterName); err != nil {
		return "", err
	}
	if err := validateGoalID(goalID); err != nil {
		return "", err
	}
	return characterSegment + delimiter + characterName + delimiter +
		goalSegment + delimiter + goalID + delimiter, nil
}

// ProgressSample builds the sort key of an immutable progress sample row.
func ProgressSample(characterName, goalID string, timestamp time.Time) (string, error) {
	prefix, err := GoalProgressPrefix(characterName, goalID)
	if err != nil {
		return "", err
	}
	if timestamp.IsZero() {
		return "", types.NewValidationError("timestamp cannot be zero")
	}
	return prefix + FormatTime(timestamp), nil
}

// LatestProgress builds the sort key of the denormalized latest-progress row.
func LatestProgress(characterName, goalID string) (string, error) {
	prefix, err := GoalProgressPrefix(characterName, goalID)
	if err != nil {
		return "", err
	}
	return prefix + latestSegment, nil
}

// EarliestProgress builds the sort key of the denormalized earliest-progress
// row.
func EarliestProgress(characterName, goalID string) (string, error) {
	prefix, err := GoalProgressPrefix(characterName, goalID)
	if err != nil {
		return "", err
	}
	return prefix + earliestSegment, nil
}

// FormatTime renders a timestamp as it appears inside sort keys: RFC 3339 in
// UTC, so lexicographic order matches chronological order.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Parse determines the entity kind of a sort key and recovers the identity
// segments embedded in it. Dispatch checks literal prefixes in a fixed
// priority order; anything that does not match a known pattern is an error.
func Parse(sortKey string) (ParsedKey, error) {
	if sortKey == metadataSegment {
		return ParsedKey{Kind: KindUserMetadata}, nil
	}

	if rest, ok := strings.CutPrefix(sortKey, notificationSegment+delimiter); ok {
		if rest == "" || strings.Contains(rest, delimiter) {
			return ParsedKey{}, types.NewValidationError("malformed notification channel sort key: %s", sortKey)
		}
		return ParsedKey{Kind: KindNotificationChannel, ChannelType: rest}, nil
	}

	if rest, ok := strings.CutPrefix(sortKey, CharacterMetadataPrefix()); ok {
		if rest == "" || strings.Contains(rest, delimiter) {
			return ParsedKey{}, types.NewValidationError("malformed character metadata sort key: %s", sortKey)
		}
		return ParsedKey{Kind: KindCharacterMetadata, CharacterName: rest}, nil
	}

	parts := strings.Split(sortKey, delimiter)
	if len(parts) != 5 || parts[0] != characterSegment || parts[2] != goalSegment {
		return ParsedKey{}, types.NewValidationError("unrecognized sort key: %s", sortKey)
	}

	characterName := parts[1]
	if parts[3] == metadataSegment {
		return ParsedKey{Kind: KindGoalMetadata, CharacterName: characterName, GoalID: parts[4]}, nil
	}

	goalID := parts[3]
	switch parts[4] {
	case latestSegment:
		return ParsedKey{Kind: KindLatestProgress, CharacterName: characterName, GoalID: goalID}, nil
	case earliestSegment:
		return ParsedKey{Kind: KindEarliestProgress, CharacterName: characterName, GoalID: goalID}, nil
	}

	ts, err := time.Parse(time.RFC3339, parts[4])
	if err != nil {
		return ParsedKey{}, types.NewValidationError("malformed progress sample sort key: %s", sortKey)
	}
	return ParsedKey{Kind: KindProgressSample, CharacterName: characterName, GoalID: goalID, Timestamp: ts}, nil
}
