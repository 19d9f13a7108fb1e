// Package token issues opaque bearer keys and evaluates their expiry.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Prefix tags every key issued by this service.
const Prefix = "sk_"

// Never is the duration code for a token without expiry.
const Never = "never"

// entropyBytes is 256 bits of randomness, 43 characters once encoded.
const entropyBytes = 32

// displayPrefixLen is how much of a raw key is kept for identification.
const displayPrefixLen = len(Prefix) + 8

var durations = map[string]time.Duration{
	"1d":   24 * time.Hour,
	"7d":   7 * 24 * time.Hour,
	"30d":  30 * 24 * time.Hour,
	"90d":  90 * 24 * time.Hour,
	"365d": 365 * 24 * time.Hour,
}

// Durations lists the accepted expiry codes in ascending order.
var Durations = []string{"1d", "7d", "30d", "90d", "365d", Never}

// Generate returns a new random key: Prefix followed by 32 random bytes in
// unpadded URL-safe base64. Uniqueness is enforced by the store, not here.
func Generate() (string, error) {
	b := make([]byte, entropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// DisplayPrefix returns the leading part of a raw key that may be shown in
// listings.
func DisplayPrefix(raw string) string {
	if len(raw) <= displayPrefixLen {
		return raw
	}
	return raw[:displayPrefixLen]
}

// IsKnownDuration reports whether code belongs to the symbolic vocabulary,
// including Never.
func IsKnownDuration(code string) bool {
	if code == Never {
		return true
	}
	_, ok := durations[code]
	return ok
}

// Codec evaluates expiry against an injected clock.
type Codec struct {
	clock Clock
}

// NewCodec returns a Codec reading time from clock. A nil clock means
// SystemClock.
func NewCodec(clock Clock) *Codec {
	if clock == nil {
		clock = SystemClock
	}
	return &Codec{clock: clock}
}

// Now returns the codec's current time.
func (c *Codec) Now() time.Time {
	return c.clock.Now()
}

// ComputeExpiration maps a duration code to an absolute unix timestamp.
// Never, the empty string and unparseable codes yield nil. A code that is not
// in the vocabulary but parses as an integer is taken as a literal unix
// timestamp; callers that must restrict input to the vocabulary check
// IsKnownDuration first.
func (c *Codec) ComputeExpiration(code string) *int64 {
	if code == "" || code == Never {
		return nil
	}
	if d, ok := durations[code]; ok {
		at := c.clock.Now().Add(d).Unix()
		return &at
	}
	if at, err := strconv.ParseInt(code, 10, 64); err == nil {
		return &at
	}
	return nil
}

// IsExpired reports whether expiresAt lies strictly in the past. A nil
// expiry never expires.
func (c *Codec) IsExpired(expiresAt *int64) bool {
	if expiresAt == nil {
		return false
	}
	return c.clock.Now().Unix() > *expiresAt
}
