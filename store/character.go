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

// CharacterStore creates and reads the characters tracked under a user.
type CharacterStore struct {
	client table.Client
	log    types.Logger
	opts   *Options
}

// NewCharacterStore builds a CharacterStore on the given table client. A
// nil logger disables logging.
func NewCharacterStore(client table.Client, log types.Logger, opts ...Option) *CharacterStore {
	return &CharacterStore{
		client: client,
		log:    loggerOrNop(log),
		opts:   newOptions(opts...),
	}
}

// CreateCharacter registers a character under an existing user. The name is
// unique within the user; a second create with the same name fails with
// [types.ConflictError].
func (s *CharacterStore) CreateCharacter(ctx context.Context, userID, name string) (*types.Character, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.CharacterMetadata(name)
	if err != nil {
		return nil, err
	}

	ok, err := userExists(ctx, s.client, pk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewNotFoundError("user %s not found", userID)
	}

	now := s.opts.now()
	character := types.Character{
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	body, err := json.Marshal(character)
	if err != nil {
		return nil, fmt.Errorf("marshal character: %w", err)
	}

	err = s.client.PutIfAbsent(ctx, table.Item{
		PartitionKey: pk,
		SortKey:      sk,
		Body:         body,
	})
	if errors.Is(err, table.ErrConditionFailed) {
		return nil, types.NewConflictError("character %s already exists for user %s", name, userID)
	}
	if err != nil {
		return nil, err
	}

	s.log.Infof("created character %s for user %s", name, userID)
	return &character, nil
}

// GetCharacter reads a character by name, failing with
// [types.NotFoundError] if absent.
func (s *CharacterStore) GetCharacter(ctx context.Context, userID, name string) (*types.Character, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.CharacterMetadata(name)
	if err != nil {
		return nil, err
	}

	item, err := s.client.Get(ctx, pk, sk)
	if errors.Is(err, table.ErrItemNotFound) {
		return nil, types.NewNotFoundError("character %s not found for user %s", name, userID)
	}
	if err != nil {
		return nil, err
	}

	var character types.Character
	if err := json.Unmarshal(item.Body, &character); err != nil {
		return nil, fmt.Errorf("unmarshal character %s: %w", name, err)
	}
	return &character, nil
}

// ListCharacters returns every character tracked under the user, ordered by
// name.
func (s *CharacterStore) ListCharacters(ctx context.Context, userID string) ([]types.Character, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}

	items, err := queryAll(ctx, s.client, pk, keys.CharacterMetadataPrefix())
	if err != nil {
		return nil, err
	}

	characters := make([]types.Character, 0, len(items))
	for _, item := range items {
		var character types.Character
		if err := json.Unmarshal(item.Body, &character); err != nil {
			return nil, fmt.Errorf("unmarshal character at %s: %w", item.SortKey, err)
		}
		characters = append(characters, character)
	}
	return characters, nil
}
