package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/osrsgoaltracker/goaldao/keys"
	"github.com/osrsgoaltracker/goaldao/table"
	"github.com/osrsgoaltracker/goaldao/types"
)

// UserStore creates and reads user metadata rows. Users are created once at
// signup and are immutable afterwards; there is no delete.
type UserStore struct {
	client table.Client
	log    types.Logger
	opts   *Options
}

// NewUserStore builds a UserStore on the given table client. A nil logger
// disables logging.
func NewUserStore(client table.Client, log types.Logger, opts ...Option) *UserStore {
	return &UserStore{
		client: client,
		log:    loggerOrNop(log),
		opts:   newOptions(opts...),
	}
}

// CreateUser registers a new user under a freshly generated ID. The email
// must be unique across all users; a duplicate fails with
// [types.DuplicateError]. The uniqueness check reads the email index before
// the conditional write, so it is best-effort under concurrent signups with
// the same address.
func (s *UserStore) CreateUser(ctx context.Context, email string) (*types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, types.NewValidationError("email cannot be blank")
	}
	if !strings.Contains(email, "@") {
		return nil, types.NewValidationError("email %q is not an address", email)
	}

	existing, err := s.client.QueryIndex(ctx, table.EmailIndex, table.EmailAttribute, email)
	if err != nil {
		return nil, fmt.Errorf("look up email: %w", err)
	}
	if len(existing) > 0 {
		return nil, types.NewDuplicateError("a user with email %s already exists", email)
	}

	now := s.opts.now()
	user := types.User{
		ID:        s.opts.newID(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	pk, err := keys.UserPartitionKey(user.ID)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}

	err = s.client.PutIfAbsent(ctx, table.Item{
		PartitionKey: pk,
		SortKey:      keys.UserMetadata(),
		Body:         body,
		IndexAttrs:   map[string]string{table.EmailAttribute: email},
	})
	if errors.Is(err, table.ErrConditionFailed) {
		return nil, types.NewDuplicateError("user %s already exists", user.ID)
	}
	if err != nil {
		return nil, err
	}

	s.log.Infof("created user %s", user.ID)
	return &user, nil
}

// GetUser reads a user by ID, failing with [types.NotFoundError] if absent.
func (s *UserStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}

	item, err := s.client.Get(ctx, pk, keys.UserMetadata())
	if errors.Is(err, table.ErrItemNotFound) {
		return nil, types.NewNotFoundError("user %s not found", userID)
	}
	if err != nil {
		return nil, err
	}

	var user types.User
	if err := json.Unmarshal(item.Body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", userID, err)
	}
	return &user, nil
}

// userExists reports whether the user's metadata row is present. Child
// stores call it before creating rows under the user's partition.
func userExists(ctx context.Context, client table.Client, partitionKey string) (bool, error) {
	_, err := client.Get(ctx, partitionKey, keys.UserMetadata())
	if errors.Is(err, table.ErrItemNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
