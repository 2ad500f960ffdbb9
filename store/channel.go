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

// NotificationChannelStore manages per-user delivery configurations. The
// sort key carries the channel type, so at most one row exists per (user,
// channel type) by construction.
type NotificationChannelStore struct {
	client table.Client
	log    types.Logger
	opts   *Options
}

// NewNotificationChannelStore builds a NotificationChannelStore on the
// given table client. A nil logger disables logging.
func NewNotificationChannelStore(client table.Client, log types.Logger, opts ...Option) *NotificationChannelStore {
	return &NotificationChannelStore{
		client: client,
		log:    loggerOrNop(log),
		opts:   newOptions(opts...),
	}
}

// CreateOrReplaceChannel upserts the channel configuration for the given
// type under an existing user. Re-creating a type replaces the previous
// identifier and active flag while keeping the original createdAt.
func (s *NotificationChannelStore) CreateOrReplaceChannel(ctx context.Context, userID, channelType, identifier string, isActive bool) (*types.NotificationChannel, error) {
	if identifier == "" {
		return nil, types.NewValidationError("channel identifier cannot be blank")
	}

	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.NotificationChannel(channelType)
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
	channel := types.NotificationChannel{
		UserID:      userID,
		ChannelType: channelType,
		Identifier:  identifier,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	existing, err := s.client.Get(ctx, pk, sk)
	if err != nil && !errors.Is(err, table.ErrItemNotFound) {
		return nil, err
	}
	if existing != nil {
		var prior types.NotificationChannel
		if err := json.Unmarshal(existing.Body, &prior); err != nil {
			return nil, fmt.Errorf("unmarshal channel %s: %w", channelType, err)
		}
		channel.CreatedAt = prior.CreatedAt
	}

	body, err := json.Marshal(channel)
	if err != nil {
		return nil, fmt.Errorf("marshal channel: %w", err)
	}
	err = s.client.Put(ctx, table.Item{
		PartitionKey: pk,
		SortKey:      sk,
		Body:         body,
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("configured %s channel for user %s", channelType, userID)
	return &channel, nil
}

// ListChannels returns every channel configured for the user regardless of
// active state, ordered by channel type.
func (s *NotificationChannelStore) ListChannels(ctx context.Context, userID string) ([]types.NotificationChannel, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}

	items, err := queryAll(ctx, s.client, pk, keys.NotificationChannelPrefix())
	if err != nil {
		return nil, err
	}

	channels := make([]types.NotificationChannel, 0, len(items))
	for _, item := range items {
		var channel types.NotificationChannel
		if err := json.Unmarshal(item.Body, &channel); err != nil {
			return nil, fmt.Errorf("unmarshal channel at %s: %w", item.SortKey, err)
		}
		channels = append(channels, channel)
	}
	return channels, nil
}
