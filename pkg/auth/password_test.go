package auth

import "testing"

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret-pass" {
		t.Fatalf("expected opaque hash, got %q", hash)
	}
	if !CheckPassword("s3cret-pass", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("s3cret-pass", "not-a-hash") {
		t.Fatalf("expected malformed hash to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("password1"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword("12345678"); err != nil {
		t.Fatalf("expected exactly 8 characters to pass, got: %v", err)
	}
	if err := ValidatePassword("short"); err != ErrShortPassword {
		t.Fatalf("expected short password error, got: %v", err)
	}
}

func TestValidateEmail(t *testing.T) {
	if got := NormalizeEmail("  A@B.Com "); got != "a@b.com" {
		t.Fatalf("normalize = %q", got)
	}
	for _, ok := range []string{"a@b.com", "first.last@sub.example.org"} {
		if err := ValidateEmail(ok); err != nil {
			t.Fatalf("expected %q to be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "ab.com", "a@b", "a b@c.com", "a@@b.com"} {
		if err := ValidateEmail(bad); err != ErrInvalidEmail {
			t.Fatalf("expected %q to be invalid, got %v", bad, err)
		}
	}
}
