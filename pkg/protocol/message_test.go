package protocol

import (
	"strings"
	"testing"
)

func TestNormalizeRole(t *testing.T) {
	if got := NormalizeRole("agent"); got != RoleAssistant {
		t.Fatalf("NormalizeRole(agent) = %q, want %q", got, RoleAssistant)
	}
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem, RoleTool} {
		if got := NormalizeRole(r); got != r {
			t.Fatalf("NormalizeRole(%q) = %q, want unchanged", r, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate(short, 10) = %q", got)
	}
	if got := Truncate(strings.Repeat("a", 20), 5); got != "aaaaa..." {
		t.Fatalf("Truncate long = %q", got)
	}
	if got := Truncate("anything", 0); got != "" {
		t.Fatalf("Truncate with max 0 = %q", got)
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	s := strings.Repeat("日", 10)
	got := Truncate(s, 4)
	want := strings.Repeat("日", 4) + "..."
	if got != want {
		t.Fatalf("Truncate multibyte = %q, want %q", got, want)
	}
}

func TestNewMessageConstructors(t *testing.T) {
	u := NewUserMessage("hi")
	if u.Role != RoleUser || u.Timestamp.IsZero() {
		t.Fatal("NewUserMessage missing role or timestamp")
	}
	a := NewAgentMessage("Writer", "draft")
	if a.Role != RoleAssistant || a.AgentName != "Writer" {
		t.Fatal("NewAgentMessage missing attribution")
	}
	s := NewSystemMessage("note")
	if s.Role != RoleSystem {
		t.Fatal("NewSystemMessage wrong role")
	}
}
