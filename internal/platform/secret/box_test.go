package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestNewBox(t *testing.T) {
	if _, err := NewBox(generateTestKey(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range []int{0, 16, 64} {
		if _, err := NewBox(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
	}
}

func TestBox_SealOpen(t *testing.T) {
	box, err := NewBox(generateTestKey(t))
	if err != nil {
		t.Fatalf("create box: %v", err)
	}
	for _, plaintext := range []string{"AIzaSyExample", "", "\x00binary\xff"} {
		sealed, err := box.Seal("user-1", plaintext)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if plaintext != "" && strings.Contains(sealed, plaintext) {
			t.Error("sealed value leaks plaintext")
		}
		got, err := box.Open("user-1", sealed)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if got != plaintext {
			t.Errorf("expected %q, got %q", plaintext, got)
		}
	}
}

func TestBox_NonceUnique(t *testing.T) {
	box, _ := NewBox(generateTestKey(t))
	a, _ := box.Seal("u", "same")
	b, _ := box.Seal("u", "same")
	if a == b {
		t.Error("expected distinct ciphertexts for the same plaintext")
	}
}

func TestBox_OpenRejects(t *testing.T) {
	box, _ := NewBox(generateTestKey(t))
	sealed, _ := box.Seal("user-1", "key")

	if _, err := box.Open("user-2", sealed); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected other user to fail, got %v", err)
	}
	if _, err := box.Open("user-1", "not base64!"); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected decode failure, got %v", err)
	}
	if _, err := box.Open("user-1", "AAAA"); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected short ciphertext failure, got %v", err)
	}

	other, _ := NewBox(generateTestKey(t))
	if _, err := other.Open("user-1", sealed); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected wrong key to fail, got %v", err)
	}
}

func TestFromHex(t *testing.T) {
	s, err := FromHex("", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := s.Seal("u", "plain"); v != "plain" {
		t.Errorf("expected pass-through without a key, got %q", v)
	}

	if _, err := FromHex("zz", zerolog.Nop()); err == nil {
		t.Error("expected invalid hex error")
	}
	if _, err := FromHex("abcd", zerolog.Nop()); err == nil {
		t.Error("expected short key error")
	}

	s, err = FromHex(hex.EncodeToString(generateTestKey(t)), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*Box); !ok {
		t.Errorf("expected *Box, got %T", s)
	}
}
