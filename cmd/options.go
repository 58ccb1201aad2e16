package cmd

// Options holds the shared command-line options for the cookiewatch CLI.
type Options struct {
	Format    string
	Verbosity int
	Repos     []string // Override the configured repositories
	Workers   int      // Override the configured worker count
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFormat sets the output format (table, json).
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithRepos sets the repositories to sweep, overriding the config.
func WithRepos(repos []string) Option {
	return func(o *Options) {
		o.Repos = repos
	}
}

// WithWorkers sets the number of concurrent sweep workers.
func WithWorkers(workers int) Option {
	return func(o *Options) {
		o.Workers = workers
	}
}
