package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osrsgoaltracker/goaldao/store"
	"github.com/osrsgoaltracker/goaldao/types"
)

func TestCreateGoal_GeneratedID(t *testing.T) {
	client := newTable(t)
	userID := newCharacter(t, client, "alice@example.com", "PlayerOne")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	goals := store.NewGoalStore(client, nil,
		store.WithClock(fixedClock(now)),
		store.WithIDGenerator(sequenceIDs("goal-1")),
	)

	targetDate := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	created, err := goals.CreateGoal(context.Background(), userID, "PlayerOne", types.GoalInput{
		Skill:                    "Woodcutting",
		TargetType:               "xp",
		TargetValue:              13034431,
		TargetDate:               &targetDate,
		NotificationChannelTypes: []string{types.ChannelTypeDiscord},
		Frequency:                types.FrequencyDaily,
	})
	require.NoError(t, err)
	assert.Equal(t, "goal-1", created.ID)
	assert.Equal(t, userID, created.UserID)
	assert.Equal(t, "PlayerOne", created.CharacterName)
	assert.True(t, created.CreatedAt.Equal(now))

	fetched, err := goals.GetGoal(context.Background(), userID, "PlayerOne", "goal-1")
	require.NoError(t, err)
	assert.Equal(t, "Woodcutting", fetched.Skill)
	assert.Equal(t, int64(13034431), fetched.TargetValue)
	require.NotNil(t, fetched.TargetDate)
	assert.True(t, fetched.TargetDate.Equal(targetDate))
	assert.Equal(t, []string{types.ChannelTypeDiscord}, fetched.NotificationChannelTypes)
	assert.Equal(t, types.FrequencyDaily, fetched.Frequency)
}

func TestCreateGoal_SuppliedIDCollision(t *testing.T) {
	client := newTable(t)
	userID := newCharacter(t, client, "alice@example.com", "PlayerOne")
	goals := store.NewGoalStore(client, nil)

	input := types.GoalInput{ID: "wc-99", Skill: "Woodcutting", TargetType: "level", TargetValue: 99}
	_, err := goals.CreateGoal(context.Background(), userID, "PlayerOne", input)
	require.NoError(t, err)

	_, err = goals.CreateGoal(context.Background(), userID, "PlayerOne", input)
	assert.True(t, types.IsConflict(err), "got %v", err)
}

func TestCreateGoal_Validation(t *testing.T) {
	client := newTable(t)
	userID := newCharacter(t, client, "alice@example.com", "PlayerOne")
	goals := store.NewGoalStore(client, nil)
	valid := types.GoalInput{Skill: "Woodcutting", TargetType: "xp", TargetValue: 100}

	tests := []struct {
		name   string
		mutate func(in *types.GoalInput)
	}{
		{"blank skill", func(in *types.GoalInput) { in.Skill = "" }},
		{"blank target type", func(in *types.GoalInput) { in.TargetType = "" }},
		{"zero target value", func(in *types.GoalInput) { in.TargetValue = 0 }},
		{"negative target value", func(in *types.GoalInput) { in.TargetValue = -5 }},
		{"unknown frequency", func(in *types.GoalInput) { in.Frequency = "HOURLY" }},
		{"blank channel type", func(in *types.GoalInput) { in.NotificationChannelTypes = []string{""} }},
		{"reserved goal ID", func(in *types.GoalInput) { in.ID = "METADATA" }},
		{"goal ID with delimiter", func(in *types.GoalInput) { in.ID = "a#b" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			tt.mutate(&input)
			_, err := goals.CreateGoal(context.Background(), userID, "PlayerOne", input)
			assert.True(t, types.IsValidation(err), "got %v", err)
		})
	}
}

func TestCreateGoal_CharacterNotFound(t *testing.T) {
	client := newTable(t)
	user := newUser(t, client, "alice@example.com")
	goals := store.NewGoalStore(client, nil)

	_, err := goals.CreateGoal(context.Background(), user.ID, "NoSuchPlayer", types.GoalInput{
		Skill: "Woodcutting", TargetType: "xp", TargetValue: 100,
	})
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestGetGoal_NotFound(t *testing.T) {
	client := newTable(t)
	userID := newCharacter(t, client, "alice@example.com", "PlayerOne")
	goals := store.NewGoalStore(client, nil)

	_, err := goals.GetGoal(context.Background(), userID, "PlayerOne", "missing")
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestListGoals(t *testing.T) {
	client := newTable(t)
	userID := newCharacter(t, client, "alice@example.com", "PlayerOne")
	goals := store.NewGoalStore(client, nil)

	for _, id := range []string{"wc-99", "agility-70", "slayer-xp"} {
		_, err := goals.CreateGoal(context.Background(), userID, "PlayerOne", types.GoalInput{
			ID: id, Skill: "Woodcutting", TargetType: "level", TargetValue: 99,
		})
		require.NoError(t, err)
	}

	listed, err := goals.ListGoals(context.Background(), userID, "PlayerOne")
	require.NoError(t, err)
	require.Len(t, listed, 3)

	// Ordered by goal ID.
	assert.Equal(t, "agility-70", listed[0].ID)
	assert.Equal(t, "slayer-xp", listed[1].ID)
	assert.Equal(t, "wc-99", listed[2].ID)
}

// Goals on one character do not leak into listings of a sibling character.
func TestListGoals_IsolatedPerCharacter(t *testing.T) {
	client := newTable(t)
	userID := newCharacter(t, client, "alice@example.com", "PlayerOne")
	characters := store.NewCharacterStore(client, nil)
	_, err := characters.CreateCharacter(context.Background(), userID, "PlayerTwo")
	require.NoError(t, err)

	goals := store.NewGoalStore(client, nil)
	_, err = goals.CreateGoal(context.Background(), userID, "PlayerOne", types.GoalInput{
		ID: "wc-99", Skill: "Woodcutting", TargetType: "level", TargetValue: 99,
	})
	require.NoError(t, err)

	listed, err := goals.ListGoals(context.Background(), userID, "PlayerTwo")
	require.NoError(t, err)
	assert.Empty(t, listed)
}
