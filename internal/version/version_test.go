package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfo_NeverEmpty(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("expected non-empty build info, got version=%q commit=%q date=%q", v, c, d)
	}
	if v != GetVersion() {
		t.Fatalf("GetVersion %q does not match Info %q", GetVersion(), v)
	}
}

func TestString_Format(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, ServiceName+" ") {
		t.Fatalf("expected %q prefix, got %q", ServiceName, s)
	}
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Fatalf("expected %q in %q", part, s)
		}
	}
}

func TestVCSInfo(t *testing.T) {
	tests := []struct {
		name     string
		info     *debug.BuildInfo
		ok       bool
		wantRev  string
		wantTime string
		wantOK   bool
	}{
		{name: "no build info", ok: false},
		{name: "no vcs settings", info: &debug.BuildInfo{}, ok: true},
		{
			name: "revision is shortened",
			info: &debug.BuildInfo{Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			}},
			ok:       true,
			wantRev:  "0123456789ab",
			wantTime: "2026-01-02T03:04:05Z",
			wantOK:   true,
		},
		{
			name:    "short revision kept",
			info:    &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}}},
			ok:      true,
			wantRev: "abc123",
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev, at, ok := vcsInfo(func() (*debug.BuildInfo, bool) { return tt.info, tt.ok })
			if rev != tt.wantRev || at != tt.wantTime || ok != tt.wantOK {
				t.Fatalf("vcsInfo() = (%q, %q, %v), want (%q, %q, %v)", rev, at, ok, tt.wantRev, tt.wantTime, tt.wantOK)
			}
		})
	}
}
