package badgerstore

import (
	"errors"

	"github.com/osrsgoaltracker/goaldao/table"
)

// Option is a functional option for configuring a [Store].
type Option func(*Options)

// Options holds the configuration for a [Store].
type Options struct {
	path    string
	indexes map[string]string
}

func newOptions() *Options {
	return &Options{
		indexes: map[string]string{
			table.EmailIndex: table.EmailAttribute,
		},
	}
}

func (o *Options) validate() error {
	for name, attr := range o.indexes {
		if name == "" || attr == "" {
			return errors.New("index name and attribute cannot be empty")
		}
	}

	return nil
}

// WithPath persists the database under the given directory instead of
// running in memory.
func WithPath(path string) Option {
	return func(o *Options) {
		o.path = path
	}
}

// WithIndex registers a secondary equality index over the given attribute.
// The [table.EmailIndex] is registered by default.
func WithIndex(name, attribute string) Option {
	return func(o *Options) {
		o.indexes[name] = attribute
	}
}
