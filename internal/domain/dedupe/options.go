package dedupe

type config struct {
	maxSize int
}

// Option configures New.
type Option func(*config)

// WithMaxSize bounds how many ids are remembered. A size <= 0 never forgets.
func WithMaxSize(maxSize int) Option {
	return func(c *config) {
		c.maxSize = maxSize
	}
}
