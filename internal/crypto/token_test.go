package crypto

import "testing"

func TestRefreshTokens(t *testing.T) {
	first, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	second, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens")
	}
	if HashToken(first) != HashToken(first) {
		t.Fatalf("expected stable token hash")
	}
	if HashToken(first) == HashToken(second) {
		t.Fatalf("expected distinct token hashes")
	}
}
