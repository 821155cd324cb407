package main

import "testing"

func TestStatementCompleteWaitsForSemicolon(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"SELECT * FROM t", false},
		{"SELECT * FROM t;", true},
		{"SELECT *\nFROM t;", true},
		{"BEGIN;", true},
	}
	for _, c := range cases {
		if got := statementComplete(c.input); got != c.want {
			t.Errorf("statementComplete(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestContinuationPromptSwitchesOnPendingInput(t *testing.T) {
	client := &Client{}
	if got := continuationPrompt(client, false); got != "coledb> " {
		t.Errorf("top-level prompt = %q", got)
	}
	if got := continuationPrompt(client, true); got != "    -> " {
		t.Errorf("continuation prompt = %q", got)
	}
}
