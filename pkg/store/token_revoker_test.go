package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryTokenRevokerExpires(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-1", 20*time.Millisecond); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v err=%v", revoked, err)
	}
	time.Sleep(30 * time.Millisecond)
	revoked, err = r.IsRevoked("jti-1")
	if err != nil || revoked {
		t.Fatalf("expected jti-1 to expire, got %v err=%v", revoked, err)
	}
}

func TestMemoryTokenRevokerIgnoresNonPositiveTTL(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-0", 0); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-0"); revoked {
		t.Fatalf("expected zero ttl revoke to be ignored")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedisTokenRevoker(mr.Addr(), "", "test:revoked")
	defer r.Close()

	if err := r.Revoke("jti-2", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !mr.Exists("test:revoked:jti-2") {
		t.Fatalf("expected revocation key in redis")
	}
	revoked, err := r.IsRevoked("jti-2")
	if err != nil || !revoked {
		t.Fatalf("expected jti-2 revoked, got %v err=%v", revoked, err)
	}

	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked("jti-2")
	if err != nil || revoked {
		t.Fatalf("expected jti-2 to expire, got %v err=%v", revoked, err)
	}
}

func TestRedisTokenRevokerReportsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedisTokenRevoker(mr.Addr(), "", "")
	defer r.Close()
	mr.Close()
	if _, err := r.IsRevoked("jti-3"); err == nil {
		t.Fatalf("expected redis failure to surface")
	}
}
