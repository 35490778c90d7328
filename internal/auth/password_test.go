package auth

import (
	"strings"
	"testing"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hashed, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hashed == "hunter22" {
		t.Fatal("expected password to be hashed")
	}
	if !CheckPassword(hashed, "hunter22") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hashed, "hunter23") {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestRefreshTokenHashHandlesLongTokens(t *testing.T) {
	token := strings.Repeat("a.b", 100)
	hashed, err := HashRefreshToken(token)
	if err != nil {
		t.Fatalf("hash refresh token: %v", err)
	}
	if !CheckRefreshToken(hashed, token) {
		t.Fatal("expected matching token to verify")
	}
	if CheckRefreshToken(hashed, token+"x") {
		t.Fatal("expected mismatched token to fail")
	}
}
