// Package password provides argon2id hashing and verification for
// account credentials. Hashes are stored in PHC string format so the
// cost parameters travel with the hash and can be upgraded later.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 8
	algorithmID           = "argon2id"
)

// Config holds the argon2id cost parameters. Values below the package
// minimums are rejected at construction time.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns interactive-login cost parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords with a fixed parameter set.
// It is safe for concurrent use.
type Hasher struct {
	config Config
}

func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password: time cost must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password: parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives an argon2id hash from password and returns it PHC-encoded.
// The password is used byte-for-byte as provided; no Unicode normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", fmt.Errorf("password: must be at least %d bytes", minPassBytes)
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. The comparison is
// constant time over the derived key.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, parsed.keyLength)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with weaker
// parameters than the hasher's current configuration.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if h.config.Memory > parsed.memory || h.config.Time > parsed.time || h.config.Parallelism > parsed.parallelism {
		return true, nil
	}
	return h.config.KeyLength != parsed.keyLength, nil
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("password: invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("password: unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("password: missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.New("password: unsupported argon2 version")
	}

	var out phcHash
	var haveM, haveT, haveP bool
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("password: invalid parameter entry")
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("password: invalid memory parameter")
			}
			out.memory, haveM = uint32(v), true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("password: invalid time parameter")
			}
			out.time, haveT = uint32(v), true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("password: invalid parallelism parameter")
			}
			out.parallelism, haveP = uint8(v), true
		default:
			return nil, errors.New("password: unsupported parameter")
		}
	}
	if !haveM || !haveT || !haveP {
		return nil, errors.New("password: missing parameters")
	}

	if out.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, errors.New("password: invalid salt")
	}
	if out.hash, err = base64.StdEncoding.DecodeString(parts[5]); err != nil || len(out.hash) == 0 {
		return nil, errors.New("password: invalid hash")
	}
	out.keyLength = uint32(len(out.hash))

	return &out, nil
}
