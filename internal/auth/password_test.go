package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatalf("hash must not equal the plaintext")
	}

	if !CheckPassword("s3cret-pass", hash) {
		t.Fatalf("expected correct password to verify")
	}
	if CheckPassword("wrong-pass", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestCheckPasswordEmptyHash(t *testing.T) {
	// OAuth-only accounts have no stored hash; credential login must fail
	// quietly, not error.
	if CheckPassword("anything", "") {
		t.Fatalf("expected empty hash to fail verification")
	}
}
