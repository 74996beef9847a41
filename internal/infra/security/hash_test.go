package security

import "testing"

func TestHasherRoundTrip(t *testing.T) {
	hasher := NewHasher(4)

	hash, err := hasher.HashPassword("Valid1Pass!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Valid1Pass!" {
		t.Fatal("hash must not equal the plaintext password")
	}

	ok, err := hasher.VerifyPassword("Valid1Pass!", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("expected password to verify against its own hash")
	}

	ok, err = hasher.VerifyPassword("Wrong1Pass!", hash)
	if err != nil {
		t.Fatalf("VerifyPassword mismatch: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHasherProducesUniqueSalts(t *testing.T) {
	hasher := NewHasher(4)

	first, err := hasher.HashPassword("Valid1Pass!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := hasher.HashPassword("Valid1Pass!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if first == second {
		t.Fatal("expected distinct hashes for the same password")
	}
}
