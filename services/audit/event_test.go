package audit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestInfoFrom(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		userAgent  string
		wantIP     string
	}{
		{name: "ipv4 with port", remoteAddr: "192.0.2.10:51234", userAgent: "curl/8.0", wantIP: "192.0.2.10"},
		{name: "ipv6 with port", remoteAddr: "[2001:db8::1]:443", wantIP: "2001:db8::1"},
		{name: "bare address from RealIP", remoteAddr: "198.51.100.7", wantIP: "198.51.100.7"},
		{name: "overlong value truncated", remoteAddr: strings.Repeat("a", 60), wantIP: strings.Repeat("a", 45)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/domains", nil)
			r.RemoteAddr = tt.remoteAddr
			r.Header.Set("User-Agent", tt.userAgent)
			info := RequestInfoFrom(r)
			if info.IPAddress != tt.wantIP {
				t.Fatalf("IPAddress = %q, want %q", info.IPAddress, tt.wantIP)
			}
			if info.UserAgent != tt.userAgent {
				t.Fatalf("UserAgent = %q, want %q", info.UserAgent, tt.userAgent)
			}
		})
	}
	if RequestInfoFrom(nil) != nil {
		t.Fatalf("RequestInfoFrom(nil) should be nil")
	}
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(Filter{})
	if where != "" || args != nil {
		t.Fatalf("global filter rendered %q %v", where, args)
	}

	where, args = whereClause(ScopeFilter(DomainScope{DomainID: 42, MailboxIDs: []int64{9}}))
	if !strings.HasPrefix(where, " WHERE (entity_type = $1 AND entity_id = ANY($2::bigint[]))") {
		t.Fatalf("unexpected where clause %q", where)
	}
	if strings.Count(where, " OR ") != 5 {
		t.Fatalf("expected six OR-ed scopes, got %q", where)
	}
	if len(args) != 12 {
		t.Fatalf("args = %d, want 12", len(args))
	}
	if ids, ok := args[3].([]int64); !ok || len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("empty alias set should become [0], got %#v", args[3])
	}
}
