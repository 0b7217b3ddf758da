package stepupapi

import "golang.org/x/time/rate"

const (
	defaultMaxBodyBytes = 16 << 10 // 16 KiB

	// verify-pin throttle. The source had no throttling at all, which is
	// untenable for a 2-digit code space; the limit stays generous enough
	// for a human finishing the demo flow.
	defaultVerifyRate  = rate.Limit(5)
	defaultVerifyBurst = 10
)

// Config carries the HTTP surface knobs.
type Config struct {
	MaxBodyBytes int64
	VerifyRate   rate.Limit
	VerifyBurst  int
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.VerifyRate <= 0 {
		c.VerifyRate = defaultVerifyRate
	}
	if c.VerifyBurst <= 0 {
		c.VerifyBurst = defaultVerifyBurst
	}
	return c
}
