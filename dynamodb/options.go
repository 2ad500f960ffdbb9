package dynamodb

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithAPI] or [WithConsistentReads]) to customise the defaults.
type Options struct {
	dynamoDBAPI     API
	consistentReads bool
}

func newOptions() *Options {
	return &Options{}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithConsistentReads makes Get and QueryPrefix use strongly consistent
// reads against the base table. Index queries remain eventually consistent;
// DynamoDB does not support consistent reads on global secondary indexes.
func WithConsistentReads() Option {
	return func(o *Options) {
		o.consistentReads = true
	}
}
