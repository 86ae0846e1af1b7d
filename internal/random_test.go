package internal

import "testing"

func TestNewResetTokenShape(t *testing.T) {
	a, err := NewResetToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	b, err := NewResetToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens")
	}
	if err := ValidResetToken(a); err != nil {
		t.Fatalf("expected generated token to be valid: %v", err)
	}
}

func TestHashResetTokenStable(t *testing.T) {
	const token = "abc"
	if HashResetToken(token) != HashResetToken(token) {
		t.Fatal("hash must be deterministic")
	}
	// sha256("abc")
	if got := HashResetToken(token); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected digest %s", got)
	}
}

func TestValidResetTokenRejects(t *testing.T) {
	for _, tok := range []string{"", "short", "zz" + string(make([]byte, 62))} {
		if ValidResetToken(tok) == nil {
			t.Fatalf("expected %q to be rejected", tok)
		}
	}
}
