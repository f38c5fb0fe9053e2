package vault

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// tripleDelimiter joins the three fields of a credential triple. It is not a
// valid character inside an OAuth token, so splitting on it is unambiguous.
const tripleDelimiter = "|"

var ErrMalformedTriple = errors.New("malformed credential triple")

// Triple is the plaintext form of a delegated credential: access token,
// expiry, refresh token. It only ever exists transiently in memory; at rest
// it is the Encode() string sealed by the Vault.
type Triple struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
}

// ParseTriple splits "accessToken|unixSeconds|refreshToken".
func ParseTriple(s string) (*Triple, error) {
	parts := strings.Split(s, tripleDelimiter)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return nil, ErrMalformedTriple
	}
	seconds, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad expiry %q", ErrMalformedTriple, parts[1])
	}
	return &Triple{
		AccessToken:  parts[0],
		ExpiresAt:    time.Unix(seconds, 0),
		RefreshToken: parts[2],
	}, nil
}

func (t *Triple) Encode() string {
	return strings.Join([]string{
		t.AccessToken,
		strconv.FormatInt(t.ExpiresAt.Unix(), 10),
		t.RefreshToken,
	}, tripleDelimiter)
}

// ExpiredWithin reports whether the access token expires within buffer from
// now. Exactly at the boundary counts as expired.
func (t *Triple) ExpiredWithin(buffer time.Duration) bool {
	return t.ExpiredWithinAt(time.Now(), buffer)
}

func (t *Triple) ExpiredWithinAt(now time.Time, buffer time.Duration) bool {
	return t.ExpiresAt.Sub(now) <= buffer
}

// Masked returns a log-safe rendering of the triple. The raw tokens must
// never reach a log line.
func (t *Triple) Masked() string {
	return fmt.Sprintf("%s|%d|%s",
		maskToken(t.AccessToken),
		t.ExpiresAt.Unix(),
		maskToken(t.RefreshToken))
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
