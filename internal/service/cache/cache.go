package cache

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ForecastKey builds the cache key for a forecast. The run ID and the last
// bar are part of the key so a new checkpoint or a new bar never serves a
// stale value.
func ForecastKey(runID, symbol, tf string, lastBar time.Time) string {
	return strings.Join([]string{
		"forecast", runID, strings.ToUpper(symbol), tf, strconv.FormatInt(lastBar.Unix(), 10),
	}, ":")
}
