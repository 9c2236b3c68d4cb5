package tokenvault

import (
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	token := "EAAGm0PX4ZCpsBO1234platformtoken"
	sealed, err := v.Seal(token)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == token || strings.Contains(sealed, token) {
		t.Fatal("sealed value must not contain the plaintext")
	}

	opened, err := v.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != token {
		t.Fatalf("round trip mismatch: got %q", opened)
	}
}

func TestSealProducesUniqueCiphertexts(t *testing.T) {
	v, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := v.Seal("same-token")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second, err := v.Seal("same-token")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if first == second {
		t.Fatal("nonce reuse: identical plaintexts must seal differently")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	v, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sealed, err := v.Seal("secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	tampered := "A" + sealed[1:]
	if tampered == sealed {
		tampered = "B" + sealed[1:]
	}
	if _, err := v.Open(tampered); err == nil {
		t.Fatal("expected tampered ciphertext to fail")
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := New("not-hex"); err == nil {
		t.Fatal("expected error for non-hex key")
	}
	if _, err := New("abcd"); err == nil {
		t.Fatal("expected error for short key")
	}
}
