package timeutil

import "time"

func NowUnix() int64 {
	return time.Now().Unix()
}

// MinExpiry returns the earliest non-zero expiry, or 0 when none is set.
func MinExpiry(values ...int64) int64 {
	var out int64
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if out == 0 || v < out {
			out = v
		}
	}
	return out
}
