package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMaxTopN caps the number of entries TopN returns.
func WithMaxTopN(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.maxTopN = n
		}
	}
}
