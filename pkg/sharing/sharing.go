// Package sharing lets a user hand one of their folders to another user
// through a short code. The code maps to a folder key; redeeming it
// downloads the folder.
package sharing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// CodeLength is the number of characters of a share code.
	CodeLength = 6
	// CodeAlphabet lists the characters a code is made of.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	maxGenerateAttempts = 16
)

var (
	// ErrCodeNotFound is returned for unknown or malformed codes.
	ErrCodeNotFound = errors.New("share code not found")
	// ErrCodeExpired is returned when the code exists but its expiry has passed.
	ErrCodeExpired = errors.New("share code expired")
	// ErrNotOwner is returned when a user shares or revokes a folder outside of their namespace.
	ErrNotOwner = errors.New("folder not owned by user")
	// ErrInvalidTTL is returned for a negative expiry.
	ErrInvalidTTL = errors.New("invalid expiry")
	// ErrNoFreeCode is returned when no unused code could be drawn.
	ErrNoFreeCode = errors.New("no free share code")
)

// Share is a code and the folder key it gives access to.
type Share struct {
	Code      string     `json:"code"`
	Path      string     `json:"path"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the share has an expiry before now.
func (s Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// CodeProvider stores share codes.
//
// Resolve returns ErrCodeNotFound for an unknown code and the share along
// with ErrCodeExpired for an expired one. Revoke of an unknown code is a no-op.
type CodeProvider interface {
	Generate(ctx context.Context, path string, ttl time.Duration) (Share, error)
	Resolve(ctx context.Context, code string) (Share, error)
	Revoke(ctx context.Context, code string) error
	PurgeExpired(ctx context.Context) (int, error)
}

// NewCode draws a random code.
func NewCode() (string, error) {
	var sb strings.Builder
	limit := big.NewInt(int64(len(CodeAlphabet)))
	for range CodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("NewCode: %w", err)
		}
		sb.WriteByte(CodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeCode uppercases and trims user input. It fails with
// ErrCodeNotFound when the result cannot be a code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != CodeLength {
		return "", fmt.Errorf("%w: %q", ErrCodeNotFound, code)
	}
	for _, r := range c {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return "", fmt.Errorf("%w: %q", ErrCodeNotFound, code)
		}
	}
	return c, nil
}

// expiry returns the expiry instant of a share created at now, or nil without ttl.
func expiry(now time.Time, ttl time.Duration) (*time.Time, error) {
	switch {
	case ttl < 0:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	case ttl == 0:
		return nil, nil
	}
	t := now.Add(ttl)
	return &t, nil
}

// uniqueCode draws codes until taken reports a free one.
func uniqueCode(taken func(string) bool) (string, error) {
	for range maxGenerateAttempts {
		code, err := NewCode()
		if err != nil {
			return "", err
		}
		if !taken(code) {
			return code, nil
		}
	}
	return "", ErrNoFreeCode
}
