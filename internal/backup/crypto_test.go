package backup

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("schedule database snapshot bytes")

	enc, err := Encrypt(plaintext, "correct horse battery staple")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(enc, plaintext) {
		t.Error("ciphertext should not contain plaintext")
	}
	if len(enc) < saltSize+nonceSize+len(plaintext) {
		t.Errorf("ciphertext length = %d, too small", len(enc))
	}

	dec, err := Decrypt(enc, "correct horse battery staple")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, plaintext) {
		t.Error("round trip should restore plaintext")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := Encrypt([]byte("secret"), "passphrase-one")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(enc, "passphrase-two"); err == nil {
		t.Error("decrypt with wrong passphrase should fail")
	}
}

func TestDecryptTruncatedData(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "whatever"); err == nil {
		t.Error("decrypt of truncated data should fail")
	}
}

func TestEncryptUniqueSalts(t *testing.T) {
	a, err := Encrypt([]byte("same input"), "same passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := Encrypt([]byte("same input"), "same passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions should differ in salt and nonce")
	}
}
