package auth

import (
	"strings"
	"testing"
)

func TestHashVerify(t *testing.T) {
	h, err := HashPassword("secret-123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !VerifyPassword(h, "secret-123") {
		t.Fatalf("expected verify to pass")
	}
	if VerifyPassword(h, "wrong") {
		t.Fatalf("expected verify to fail")
	}
}

func TestBcryptHasherAndCrossVerify(t *testing.T) {
	h, err := NewHasher("bcrypt", 4)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	enc, err := h.Hash("prompt-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(enc, "$2a$04$") {
		t.Fatalf("unexpected bcrypt encoding %q", enc)
	}
	argon, _ := NewHasher("argon2id", 0)
	if !argon.Verify(enc, "prompt-pass") {
		t.Fatalf("argon2id hasher should still verify bcrypt credentials")
	}
	if h.Verify(enc, "nope") {
		t.Fatalf("expected verify to fail")
	}
}

func TestNewHasherRejectsUnknown(t *testing.T) {
	if _, err := NewHasher("md5", 0); err == nil {
		t.Fatalf("expected error for unknown hasher")
	}
	if _, err := NewHasher("bcrypt", 99); err == nil {
		t.Fatalf("expected error for bcrypt cost out of range")
	}
}
