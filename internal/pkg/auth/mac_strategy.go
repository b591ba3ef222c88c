package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

var ErrInvalidToken = errors.New("invalid auth token")

var encoding = base64.RawURLEncoding

// MACStrategy signs "<user>.<expiry>" with keyed BLAKE2b.
type MACStrategy struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewMACStrategy builds MACStrategy. Keys longer than 64 bytes are hashed
// down to the BLAKE2b key size.
func NewMACStrategy(secret string, opts Options) *MACStrategy {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &MACStrategy{key: key, ttl: ttl, now: time.Now}
}

// IssueToken generates a signed token for the user.
func (s *MACStrategy) IssueToken(userID int64) (string, error) {
	payload := fmt.Sprintf("%d.%d", userID, s.now().Add(s.ttl).Unix())
	sig, err := s.sign(payload)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString([]byte(payload)) + "." + sig, nil
}

// ParseToken validates token and returns the encoded user ID.
func (s *MACStrategy) ParseToken(token string) (int64, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return 0, ErrInvalidToken
	}
	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return 0, ErrInvalidToken
	}
	payload := string(raw)

	expected, err := s.sign(payload)
	if err != nil || subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) != 1 {
		return 0, ErrInvalidToken
	}

	user, exp, ok := strings.Cut(payload, ".")
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(user, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	expires, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if !time.Unix(expires, 0).After(s.now()) {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

func (s *MACStrategy) Name() string {
	return "blake2b-mac"
}

func (s *MACStrategy) sign(payload string) (string, error) {
	mac, err := blake2b.New256(s.key)
	if err != nil {
		return "", err
	}
	mac.Write([]byte(payload))
	return encoding.EncodeToString(mac.Sum(nil)), nil
}
