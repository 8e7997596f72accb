package principal

import (
	"testing"
	"time"
)

func TestAuthContextPredicates(t *testing.T) {
	anon := Anonymous("acme")
	if !anon.IsAnonymous() || anon.IsAdmin() {
		t.Error("anonymous context misclassified")
	}
	empty := AuthContext{}
	if !empty.IsAnonymous() {
		t.Error("empty email must count as anonymous")
	}
	root := Root("acme")
	if root.IsAnonymous() || !root.IsAdmin() {
		t.Error("root context misclassified")
	}
	sys := System("acme")
	if !sys.IsAdmin() || sys.Mode != ModeAction {
		t.Error("lock-system context misclassified")
	}
	user := AuthContext{Principal: Principal{Email: "alice@example.com", Groups: []string{"finance"}}}
	if user.IsAdmin() || user.IsAnonymous() {
		t.Error("regular user misclassified")
	}
	if !user.InGroup("finance") || user.InGroup("hr") {
		t.Error("group membership wrong")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	in := AuthContext{
		Principal: Principal{Email: "alice@example.com", Groups: []string{"finance", "legal"}},
		Tenant:    "acme",
	}
	tok, err := NewToken(in, secret, time.Hour)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	out, err := FromToken(tok, secret)
	if err != nil {
		t.Fatalf("FromToken failed: %v", err)
	}
	if out.Principal.Email != in.Principal.Email {
		t.Errorf("email = %q, want %q", out.Principal.Email, in.Principal.Email)
	}
	if len(out.Principal.Groups) != 2 || out.Principal.Groups[0] != "finance" {
		t.Errorf("groups = %v", out.Principal.Groups)
	}
	if out.Tenant != "acme" || out.Mode != ModeDirect {
		t.Errorf("tenant/mode = %q/%q", out.Tenant, out.Mode)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	tok, err := NewToken(Root("acme"), []byte("right"), time.Hour)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if _, err := FromToken(tok, []byte("wrong")); err == nil {
		t.Error("expected verification failure with the wrong secret")
	}
}

func TestTokenExpired(t *testing.T) {
	secret := []byte("s")
	tok, err := NewToken(Root("acme"), secret, -time.Minute)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if _, err := FromToken(tok, secret); err == nil {
		t.Error("expected expired token to be rejected")
	}
}
