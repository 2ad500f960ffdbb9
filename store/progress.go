package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/osrsgoaltracker/goaldao/keys"
	"github.com/osrsgoaltracker/goaldao/table"
	"github.com/osrsgoaltracker/goaldao/types"
)

// ProgressStore appends progress samples and maintains the denormalized
// latest/earliest boundary rows for each goal.
//
// RecordProgress first writes the immutable sample, then updates the
// boundary rows with read-then-write sequences. The three writes are not
// atomic: under concurrent calls for the same goal a boundary row may
// transiently hold a stale value, but every call re-evaluates against the
// row's current state, so the boundaries converge.
type ProgressStore struct {
	client table.Client
	log    types.Logger
	opts   *Options
}

// NewProgressStore builds a ProgressStore on the given table client. A nil
// logger disables logging.
func NewProgressStore(client table.Client, log types.Logger, opts ...Option) *ProgressStore {
	return &ProgressStore{
		client: client,
		log:    loggerOrNop(log),
		opts:   newOptions(opts...),
	}
}

// ProgressQuery bounds and paginates a ListProgress call. From and To, when
// set, restrict the range to samples with From <= timestamp <= To. Limit is
// the maximum page size; PageToken resumes from a previous page.
type ProgressQuery struct {
	From      time.Time
	To        time.Time
	Limit     int
	PageToken string
}

// ProgressPage is one page of samples in ascending timestamp order.
// NextToken is empty once the range is exhausted.
type ProgressPage struct {
	Samples   []types.ProgressSample
	NextToken string
}

// RecordProgress appends one sample for a goal. Samples are keyed by
// timestamp at second precision; a second sample at the same instant fails
// with [types.ConflictError] instead of overwriting. When the store was
// built with [WithProgressTimeToLive], the sample row carries an expiry;
// boundary rows never do.
func (s *ProgressStore) RecordProgress(ctx context.Context, userID, characterName, goalID string, value int64, timestamp time.Time) (*types.ProgressSample, error) {
	if value < 0 {
		return nil, types.NewValidationError("progress value cannot be negative, got %d", value)
	}

	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	// Sort keys carry RFC 3339 at second precision, so the stored
	// timestamp is truncated to match.
	ts := timestamp.UTC().Truncate(time.Second)
	sk, err := keys.ProgressSample(characterName, goalID, ts)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	sample := types.ProgressSample{
		UserID:        userID,
		CharacterName: characterName,
		GoalID:        goalID,
		Value:         value,
		Timestamp:     ts,
		CreatedAt:     now,
	}
	body, err := json.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("marshal progress sample: %w", err)
	}

	item := table.Item{
		PartitionKey: pk,
		SortKey:      sk,
		Body:         body,
	}
	if s.opts.progressTTL > 0 {
		item.ExpiresAt = now.Add(s.opts.progressTTL).Unix()
	}

	err = s.client.PutIfAbsent(ctx, item)
	if errors.Is(err, table.ErrConditionFailed) {
		return nil, types.NewConflictError("progress sample at %s already exists for goal %s", keys.FormatTime(ts), goalID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.updateLatest(ctx, pk, characterName, goalID, value, ts, now); err != nil {
		return nil, err
	}
	if err := s.updateEarliest(ctx, pk, characterName, goalID, value, ts, now); err != nil {
		return nil, err
	}

	s.log.Debugf("recorded progress %d at %s for goal %s", value, keys.FormatTime(ts), goalID)
	return &sample, nil
}

// updateLatest upserts the latest-progress row when the new sample is at
// least as recent as the current one. Ties go to the last writer.
func (s *ProgressStore) updateLatest(ctx context.Context, pk, characterName, goalID string, value int64, ts, now time.Time) error {
	sk, err := keys.LatestProgress(characterName, goalID)
	if err != nil {
		return err
	}

	current, err := s.readBoundary(ctx, pk, sk)
	if err != nil {
		return err
	}
	if current != nil && ts.Before(current.Timestamp) {
		return nil
	}
	return s.writeBoundary(ctx, pk, sk, types.GoalProgress{Value: value, Timestamp: ts, UpdatedAt: now})
}

// updateEarliest writes the earliest-progress row only when none exists yet
// or the new sample predates it, which happens only for back-filled data.
func (s *ProgressStore) updateEarliest(ctx context.Context, pk, characterName, goalID string, value int64, ts, now time.Time) error {
	sk, err := keys.EarliestProgress(characterName, goalID)
	if err != nil {
		return err
	}

	current, err := s.readBoundary(ctx, pk, sk)
	if err != nil {
		return err
	}
	if current != nil && !ts.Before(current.Timestamp) {
		return nil
	}
	return s.writeBoundary(ctx, pk, sk, types.GoalProgress{Value: value, Timestamp: ts, UpdatedAt: now})
}

func (s *ProgressStore) readBoundary(ctx context.Context, pk, sk string) (*types.GoalProgress, error) {
	item, err := s.client.Get(ctx, pk, sk)
	if errors.Is(err, table.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var progress types.GoalProgress
	if err := json.Unmarshal(item.Body, &progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress at %s: %w", sk, err)
	}
	return &progress, nil
}

func (s *ProgressStore) writeBoundary(ctx context.Context, pk, sk string, progress types.GoalProgress) error {
	body, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.client.Put(ctx, table.Item{
		PartitionKey: pk,
		SortKey:      sk,
		Body:         body,
	})
}

// GetLatestProgress returns the goal's most recent sample in one point
// read, failing with [types.NotFoundError] when no progress has ever been
// recorded.
func (s *ProgressStore) GetLatestProgress(ctx context.Context, userID, characterName, goalID string) (*types.GoalProgress, error) {
	sk, err := keys.LatestProgress(characterName, goalID)
	if err != nil {
		return nil, err
	}
	return s.getBoundary(ctx, userID, goalID, sk)
}

// GetEarliestProgress returns the goal's first recorded sample in one point
// read, failing with [types.NotFoundError] when no progress has ever been
// recorded.
func (s *ProgressStore) GetEarliestProgress(ctx context.Context, userID, characterName, goalID string) (*types.GoalProgress, error) {
	sk, err := keys.EarliestProgress(characterName, goalID)
	if err != nil {
		return nil, err
	}
	return s.getBoundary(ctx, userID, goalID, sk)
}

func (s *ProgressStore) getBoundary(ctx context.Context, userID, goalID, sk string) (*types.GoalProgress, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}

	item, err := s.client.Get(ctx, pk, sk)
	if errors.Is(err, table.ErrItemNotFound) {
		return nil, types.NewNotFoundError("no progress recorded for goal %s", goalID)
	}
	if err != nil {
		return nil, err
	}

	var progress types.GoalProgress
	if err := json.Unmarshal(item.Body, &progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress at %s: %w", sk, err)
	}
	return &progress, nil
}

// ListProgress pages through a goal's sample history in ascending timestamp
// order, optionally bounded by the query's From and To. The range always
// carries an upper bound that stops short of the LATEST and EARLIEST rows
// sharing the goal's key prefix, so pages hold only samples.
func (s *ProgressStore) ListProgress(ctx context.Context, userID, characterName, goalID string, query ProgressQuery) (*ProgressPage, error) {
	pk, err := keys.UserPartitionKey(userID)
	if err != nil {
		return nil, err
	}
	prefix, err := keys.GoalProgressPrefix(characterName, goalID)
	if err != nil {
		return nil, err
	}

	opts := table.QueryOptions{
		StartToken: query.PageToken,
		Limit:      query.Limit,
	}
	if !query.From.IsZero() {
		opts.FromSortKey = prefix + keys.FormatTime(query.From)
	}
	if !query.To.IsZero() {
		opts.ToSortKey = prefix + keys.FormatTime(query.To)
	} else {
		// Timestamp segments start with a digit and the LATEST/EARLIEST
		// suffixes with a letter, so ':' (the byte after '9') caps the
		// range past every sample while keeping both pointers out.
		opts.ToSortKey = prefix + ":"
	}

	page, err := s.client.QueryPrefix(ctx, pk, prefix, opts)
	if err != nil {
		return nil, err
	}

	result := &ProgressPage{NextToken: page.NextToken}
	for _, item := range page.Items {
		var sample types.ProgressSample
		if err := json.Unmarshal(item.Body, &sample); err != nil {
			return nil, fmt.Errorf("unmarshal progress sample at %s: %w", item.SortKey, err)
		}
		result.Samples = append(result.Samples, sample)
	}
	return result, nil
}
