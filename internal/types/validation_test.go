package types

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultKeyValidationConfig(t *testing.T) {
	cfg := DefaultKeyValidationConfig()

	if cfg.MaxKeyLength != 512 {
		t.Errorf("MaxKeyLength = %d, want 512", cfg.MaxKeyLength)
	}
	if cfg.AllowEmpty {
		t.Error("AllowEmpty = true, want false")
	}
	if cfg.AllowControlChars {
		t.Error("AllowControlChars = true, want false")
	}
	if cfg.AllowWhitespace {
		t.Error("AllowWhitespace = true, want false")
	}
}

func TestKeyValidator_Validate(t *testing.T) {
	t.Run("project identifiers pass validation", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())
		keys := []string{
			"12345",
			"group/subgroup/project",
			"project:42:analysis",
			"プロジェクト",
		}
		for _, key := range keys {
			if err := v.Validate(key); err != nil {
				t.Errorf("Validate(%q) = %v, want nil", key, err)
			}
		}
	})

	t.Run("empty key rejected by default", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())
		err := v.Validate("")
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Validate(\"\") = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("empty key allowed when configured", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.AllowEmpty = true
		if err := NewKeyValidator(cfg).Validate(""); err != nil {
			t.Errorf("Validate(\"\") = %v, want nil", err)
		}
	})

	t.Run("key exceeding max length rejected", func(t *testing.T) {
		v := NewKeyValidator(KeyValidationConfig{MaxKeyLength: 8})
		err := v.Validate(strings.Repeat("a", 9))
		if !IsInvalidKey(err) {
			t.Errorf("Validate() = %v, want invalid key", err)
		}
	})

	t.Run("max length check disabled when zero", func(t *testing.T) {
		v := NewKeyValidator(KeyValidationConfig{AllowWhitespace: true})
		if err := v.Validate(strings.Repeat("a", 4096)); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("invalid UTF-8 rejected", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())
		if err := v.Validate("bad\xff"); !IsInvalidKey(err) {
			t.Errorf("Validate() = %v, want invalid key", err)
		}
	})

	t.Run("control characters rejected", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())
		for _, key := range []string{"a\x00b", "a\x1fb", "a\x7fb"} {
			if err := v.Validate(key); !IsInvalidKey(err) {
				t.Errorf("Validate(%q) = %v, want invalid key", key, err)
			}
		}
	})

	t.Run("whitespace rejected by default", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())
		if err := v.Validate("my project"); !IsInvalidKey(err) {
			t.Errorf("Validate() = %v, want invalid key", err)
		}
	})

	t.Run("whitespace allowed when configured", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.AllowWhitespace = true
		if err := NewKeyValidator(cfg).Validate("my project"); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("reserved patterns rejected", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.ReservedPatterns = []string{"*", "__internal"}
		v := NewKeyValidator(cfg)
		for _, key := range []string{"proj*", "__internal:1"} {
			if err := v.Validate(key); !IsInvalidKey(err) {
				t.Errorf("Validate(%q) = %v, want invalid key", key, err)
			}
		}
		if err := v.Validate("project-1"); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}

func TestInvalidKeyErrorDetails(t *testing.T) {
	v := NewKeyValidator(DefaultKeyValidationConfig())

	tests := []struct {
		key        string
		wantReason string
		wantOffset int
	}{
		{"", "key is empty", -1},
		{"group/my project", "whitespace", 8},
		{"ab\x01", "control character", 2},
		{"ok\xffno", "invalid UTF-8", 2},
	}

	for _, tt := range tests {
		t.Run(tt.wantReason, func(t *testing.T) {
			err := v.Validate(tt.key)
			var keyErr *InvalidKeyError
			if !errors.As(err, &keyErr) {
				t.Fatalf("Validate(%q) = %v, want *InvalidKeyError", tt.key, err)
			}
			if keyErr.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", keyErr.Reason, tt.wantReason)
			}
			if keyErr.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", keyErr.Offset, tt.wantOffset)
			}
			if keyErr.Key != tt.key {
				t.Errorf("Key = %q, want %q", keyErr.Key, tt.key)
			}
		})
	}
}

func TestValidateKeyUsesDefaultValidator(t *testing.T) {
	if err := ValidateKey("42"); err != nil {
		t.Errorf("ValidateKey() = %v, want nil", err)
	}
	if err := ValidateKey(""); err == nil {
		t.Error("ValidateKey(\"\") = nil, want error")
	}
}

func TestInvalidKeyIsValidationFailure(t *testing.T) {
	err := ValidateKey("")
	if !IsValidation(err) {
		t.Errorf("IsValidation(%v) = false, want true", err)
	}
}
