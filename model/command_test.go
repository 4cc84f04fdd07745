package model

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
		ok   bool
	}{
		{"next", CommandNext, true},
		{"prev", CommandPrev, true},
		{"pass", CommandPass, true},
		{"fail", CommandFail, true},
		{" NEXT ", CommandNext, true},
		{"reset", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseCommand(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCommand_Message(t *testing.T) {
	for _, c := range []Command{CommandNext, CommandPrev, CommandPass, CommandFail} {
		if c.Message() == "" {
			t.Errorf("%s.Message() is empty", c)
		}
	}
	if Command("bogus").Message() != "" {
		t.Error("unknown command should have no message")
	}
}
