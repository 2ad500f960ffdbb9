package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/osrsgoaltracker/goaldao/types"
)

// Options holds the tunable behaviour shared by all stores.
type Options struct {
	clock       func() time.Time
	newID       func() string
	progressTTL time.Duration
}

// Option mutates Options.
type Option func(o *Options)

func newOptions(opts ...Option) *Options {
	o := &Options{
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithClock overrides the time source used for createdAt/updatedAt stamps
// and TTL computation. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithIDGenerator overrides the generator used for user and goal IDs. The
// default produces random UUIDs. Intended for tests.
func WithIDGenerator(newID func() string) Option {
	return func(o *Options) {
		o.newID = newID
	}
}

// WithProgressTimeToLive sets a retention period on progress sample rows.
// Samples expire ttl after they are recorded; the denormalized latest and
// earliest rows never expire. Zero (the default) disables expiry.
func WithProgressTimeToLive(ttl time.Duration) Option {
	return func(o *Options) {
		o.progressTTL = ttl
	}
}

func (o *Options) now() time.Time {
	return o.clock().UTC()
}

func loggerOrNop(log types.Logger) types.Logger {
	if log == nil {
		return types.NopLogger{}
	}
	return log
}
