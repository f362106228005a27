package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "{CRYPT}$2") {
		t.Fatalf("hash %q lacks {CRYPT} bcrypt prefix", hash)
	}
	if !VerifyPassword("s3cret-pass", hash) {
		t.Fatalf("VerifyPassword() rejected correct password")
	}
	if !VerifyPassword("s3cret-pass", strings.TrimPrefix(hash, "{CRYPT}")) {
		t.Fatalf("VerifyPassword() rejected unprefixed hash")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatalf("VerifyPassword() accepted wrong password")
	}
	if VerifyPassword("anything", "") {
		t.Fatalf("VerifyPassword() accepted empty hash")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("HashPassword(\"\") expected error")
	}
}
