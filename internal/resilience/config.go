package resilience

import "time"

// UpstreamRetry builds the retry policy for upstream GETs from the
// upstream.max_attempts, upstream.initial_backoff_ms and
// upstream.max_backoff_ms settings. Non-positive values keep the defaults, so
// an unset max_attempts means a single attempt.
func UpstreamRetry(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	cfg.OnRetry = RetryLogger("eastmoney", "get")
	return cfg
}
