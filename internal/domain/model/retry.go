package model

import "time"

// StatusAfterFailure picks the status after a failed background send given
// the incremented attempt count.
func StatusAfterFailure(attempts, limit int) WithdrawalStatus {
	if limit > 0 && attempts > 1 && attempts%limit == 0 {
		return StatusReprocessing
	}
	return StatusPending
}

// Backoff returns the wait before the next background attempt. The exponent
// restarts every limit attempts since REPROCESSING already imposes a pause.
func Backoff(attempts, limit int, base, max time.Duration) time.Duration {
	if attempts <= 0 || base <= 0 {
		return 0
	}
	step := attempts - 1
	if limit > 0 {
		step %= limit
	}
	d := base
	for i := 0; i < step; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
