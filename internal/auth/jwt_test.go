package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("asha@uni.edu", "Asha", RoleStudent, "classattend", "test-key", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "test-key", "classattend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "asha@uni.edu" || claims.Role != RoleStudent || claims.Name != "Asha" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	if _, err := Issue("x@y.z", "X", "janitor", "iss", "key", time.Minute, time.Hour); err == nil {
		t.Error("Issue with unknown role should fail")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("asha@uni.edu", "Asha", RoleInstructor, "classattend", "key-a", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "key-b", "classattend"); err == nil {
		t.Error("Parse with wrong key should fail")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, err := Issue("asha@uni.edu", "Asha", RoleInstructor, "someone-else", "key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "key", "classattend"); err == nil {
		t.Error("Parse with wrong issuer should fail")
	}
}
