package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/osrsgoaltracker/goaldao/keys"
	"github.com/osrsgoaltracker/goaldao/table"
	"github.com/osrsgoaltracker/goaldao/types"
)

// GoalStore creates and reads the goals attached to a character.
type GoalStore struct {
	client table.Client
	log    types.Logger
	opts   *Options
}

// NewGoalStore builds a GoalStore on the given table client. A nil logger
// disables logging.
func NewGoalStore(client table.Client, log types.Logger, opts ...Option) *GoalStore {
	return &GoalStore{
		client: client,
		log:    loggerOrNop(log),
		opts:   newOptions(opts...),
	}
}

func validateGoalInput(input types.GoalInput) error {
	if input.Skill == "" {
		return types.NewValidationError("goal skill cannot be blank")
	}
	if input.TargetType == "" {
		return types.NewValidationError("goal target type cannot be blank")
	}
	if input.TargetValue <= 0 {
		return types.NewValidationError("goal target value must be positive, got %d", input.TargetValue)
	}
	switch input.Frequency {
	case "", types.FrequencyDaily, types.FrequencyWeekly, types.FrequencyMonthly:
	default:
		return types.NewValidationError("unknown goal frequency %q", input.Frequency)
	}
	for _, channelType := range input.NotificationChannelTypes {
		if channelType == "" {
			return types.NewValidationError("goal notification channel type cannot be blank")
		}
	}
	return nil
}

// CreateGoal registers a goal under an existing character. When input.ID is
// blank a fresh ID is generated; a supplied ID that collides with an
// existing goal fails with [types.ConflictError].
func (s *GoalStore) CreateGoal(ctx context.Context, userID, characterName string, input types.GoalInput) (*types.Goal, error) {
	if err := validateGoalInput(input); err != nil {
		return nil, err
	}

	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	characterKey, err := keys.CharacterMetadata(characterName)
	if err != nil {
		return nil, err
	}

	if _, err := s.client.Get(ctx, pk, characterKey); err != nil {
		if errors.Is(err, table.ErrItemNotFound) {
			return nil, types.NewNotFoundError("character %s not found for user %s", characterName, userID)
		}
		return nil, err
	}

	goalID := input.ID
	if goalID == "" {
		goalID = s.opts.newID()
	}
	sk, err := keys.GoalMetadata(characterName, goalID)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	goal := types.Goal{
		UserID:                   userID,
		CharacterName:            characterName,
		ID:                       goalID,
		Skill:                    input.Skill,
		TargetType:               input.TargetType,
		TargetValue:              input.TargetValue,
		TargetDate:               input.TargetDate,
		NotificationChannelTypes: input.NotificationChannelTypes,
		Frequency:                input.Frequency,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	body, err := json.Marshal(goal)
	if err != nil {
		return nil, fmt.Errorf("marshal goal: %w", err)
	}

	err = s.client.PutIfAbsent(ctx, table.Item{
		PartitionKey: pk,
		SortKey:      sk,
		Body:         body,
	})
	if errors.Is(err, table.ErrConditionFailed) {
		return nil, types.NewConflictError("goal %s already exists for character %s", goalID, characterName)
	}
	if err != nil {
		return nil, err
	}

	s.log.Infof("created goal %s for character %s of user %s", goalID, characterName, userID)
	return &goal, nil
}

// GetGoal reads a goal by ID, failing with [types.NotFoundError] if absent.
func (s *GoalStore) GetGoal(ctx context.Context, userID, characterName, goalID string) (*types.Goal, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.GoalMetadata(characterName, goalID)
	if err != nil {
		return nil, err
	}

	item, err := s.client.Get(ctx, pk, sk)
	if errors.Is(err, table.ErrItemNotFound) {
		return nil, types.NewNotFoundError("goal %s not found for character %s", goalID, characterName)
	}
	if err != nil {
		return nil, err
	}

	var goal types.Goal
	if err := json.Unmarshal(item.Body, &goal); err != nil {
		return nil, fmt.Errorf("unmarshal goal %s: %w", goalID, err)
	}
	return &goal, nil
}

// ListGoals returns every goal attached to the character, ordered by goal
// ID.
func (s *GoalStore) ListGoals(ctx context.Context, userID, characterName string) ([]types.Goal, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	prefix, err := keys.GoalMetadataPrefix(characterName)
	if err != nil {
		return nil, err
	}

	items, err := queryAll(ctx, s.client, pk, prefix)
	if err != nil {
		return nil, err
	}

	goals := make([]types.Goal, 0, len(items))
	for _, item := range items {
		var goal types.Goal
		if err := json.Unmarshal(item.Body, &goal); err != nil {
			return nil, fmt.Errorf("unmarshal goal at %s: %w", item.SortKey, err)
		}
		goals = append(goals, goal)
	}
	return goals, nil
}
