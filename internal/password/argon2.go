// Package password hashes and verifies account passwords with argon2id,
// encoding results as PHC strings.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// Ceilings for parameters read from a stored hash. A hasher whose own Config
// is higher raises the ceiling to its Config.
const (
	maxMemory      = 256 * 1024 // KiB
	maxTime        = 10
	maxParallelism = 16
	maxSaltLength  = 64
	maxKeyLength   = 128
)

var (
	// ErrInvalidHash is returned when an encoded hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrIncompatibleVersion is returned for hashes of another argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Config holds the argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the interactive-login parameters recommended by RFC 9106.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes passwords with a fixed Config.
type Argon2 struct {
	config Config
	rand   io.Reader
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.Memory == 0 || cfg.Time == 0 || cfg.Parallelism == 0 {
		return nil, errors.New("argon2: memory, time and parallelism must be positive")
	}
	if cfg.SaltLength < 8 || cfg.KeyLength < 16 {
		return nil, errors.New("argon2: salt must be >= 8 bytes and key >= 16 bytes")
	}
	return &Argon2{config: cfg, rand: rand.Reader}, nil
}

// Hash returns the PHC encoding of password under a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Parameters are taken
// from the encoding, not from the hasher's Config, but must not exceed the
// cost ceilings; otherwise ErrInvalidHash is returned without hashing.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	p, err := parse(encoded)
	if err != nil {
		return false, err
	}
	if !a.withinLimits(p) {
		return false, ErrInvalidHash
	}
	key := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

func (a *Argon2) withinLimits(p params) bool {
	return p.memory <= max(maxMemory, a.config.Memory) &&
		p.time <= max(maxTime, a.config.Time) &&
		p.parallelism <= max(maxParallelism, a.config.Parallelism) &&
		uint32(len(p.salt)) <= max(maxSaltLength, a.config.SaltLength) &&
		uint32(len(p.key)) <= max(maxKeyLength, a.config.KeyLength)
}

type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parse(encoded string) (params, error) {
	var p params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return p, ErrInvalidHash
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return p, ErrInvalidHash
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, ErrInvalidHash
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return p, ErrInvalidHash
	}
	return p, nil
}
