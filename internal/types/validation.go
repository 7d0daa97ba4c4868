package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig holds the rules applied to analysis cache keys.
// Keys are external identifiers such as a project id or a repository path.
type KeyValidationConfig struct {
	ReservedPatterns  []string
	MaxKeyLength      int
	AllowEmpty        bool
	AllowControlChars bool
	AllowWhitespace   bool
}

func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{MaxKeyLength: 512}
}

// InvalidKeyError describes why a key was refused. Offset is the byte offset
// of the offending rune, or -1 when the whole key is at fault.
type InvalidKeyError struct {
	Key    string
	Reason string
	Offset int
}

func (e *InvalidKeyError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%v: %s at byte %d", ErrInvalidKey, e.Reason, e.Offset)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidKey, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

type keyCheck func(cfg *KeyValidationConfig, key string) *InvalidKeyError

// KeyValidator applies KeyValidationConfig to keys. It is safe for
// concurrent use.
type KeyValidator struct {
	config KeyValidationConfig
	checks []keyCheck
}

func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	return &KeyValidator{
		config: config,
		checks: []keyCheck{checkLength, checkEncoding, checkRunes, checkReserved},
	}
}

// Validate returns an *InvalidKeyError for the first rule key breaks.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		if v.config.AllowEmpty {
			return nil
		}
		return &InvalidKeyError{Key: key, Reason: "key is empty", Offset: -1}
	}
	for _, check := range v.checks {
		if err := check(&v.config, key); err != nil {
			return err
		}
	}
	return nil
}

func checkLength(cfg *KeyValidationConfig, key string) *InvalidKeyError {
	if cfg.MaxKeyLength > 0 && len(key) > cfg.MaxKeyLength {
		return &InvalidKeyError{
			Key:    key,
			Reason: fmt.Sprintf("key is %d bytes, limit is %d", len(key), cfg.MaxKeyLength),
			Offset: -1,
		}
	}
	return nil
}

func checkEncoding(_ *KeyValidationConfig, key string) *InvalidKeyError {
	if utf8.ValidString(key) {
		return nil
	}
	for i, r := range key {
		if r == utf8.RuneError {
			return &InvalidKeyError{Key: key, Reason: "invalid UTF-8", Offset: i}
		}
	}
	return &InvalidKeyError{Key: key, Reason: "invalid UTF-8", Offset: -1}
}

func checkRunes(cfg *KeyValidationConfig, key string) *InvalidKeyError {
	for i, r := range key {
		switch {
		case !cfg.AllowControlChars && unicode.IsControl(r):
			return &InvalidKeyError{Key: key, Reason: "control character", Offset: i}
		case !cfg.AllowWhitespace && unicode.IsSpace(r):
			return &InvalidKeyError{Key: key, Reason: "whitespace", Offset: i}
		}
	}
	return nil
}

func checkReserved(cfg *KeyValidationConfig, key string) *InvalidKeyError {
	for _, pattern := range cfg.ReservedPatterns {
		if i := strings.Index(key, pattern); i >= 0 {
			return &InvalidKeyError{Key: key, Reason: fmt.Sprintf("reserved pattern %q", pattern), Offset: i}
		}
	}
	return nil
}

var defaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// ValidateKey checks key against DefaultKeyValidationConfig.
func ValidateKey(key string) error {
	return defaultKeyValidator.Validate(key)
}

func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
