package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken reports a malformed or tampered download token.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrExpiredToken reports a well-formed token past its expiry.
	ErrExpiredToken = errors.New("download token expired")
)

// SignedLink is a download token bound to one stored artifact.
type SignedLink struct {
	Token     string
	Subject   string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for the artifact stored at relPath. subject identifies
// the artifact version, e.g. the generation run id.
func (s *SignedURLSigner) Sign(subject, relPath string) (SignedLink, error) {
	if subject == "" || relPath == "" {
		return SignedLink{}, fmt.Errorf("subject and path required")
	}
	if len(s.secret) == 0 {
		return SignedLink{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{subject, ts, encodedPath, s.mac(subject, ts, encodedPath)}, ".")
	return SignedLink{Token: token, Subject: subject, Path: relPath, ExpiresAt: expiresAt}, nil
}

// Verify validates a token and returns the embedded link.
func (s *SignedURLSigner) Verify(token string) (SignedLink, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedLink{}, ErrInvalidToken
	}
	subject, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(subject, ts, encodedPath)), []byte(signature)) {
		return SignedLink{}, ErrInvalidToken
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return SignedLink{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return SignedLink{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	link := SignedLink{Token: token, Subject: subject, Path: string(rawPath), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(link.ExpiresAt) {
		return link, ErrExpiredToken
	}
	return link, nil
}

func (s *SignedURLSigner) mac(subject, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(subject + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
