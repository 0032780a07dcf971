package scanner_test

import (
	"testing"

	"github.com/goliatone/go-gfm/internal/references/scanner"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

type wantToken struct {
	raw     string
	kind    interfaces.ReferenceKind
	key     string
	project string
}

func collect(raw string) []interfaces.ReferenceToken {
	var out []interfaces.ReferenceToken
	for token := range scanner.Scan(raw) {
		out = append(out, token)
	}
	return out
}

func assertTokens(t *testing.T, raw string, got []interfaces.ReferenceToken, want []wantToken) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("scan(%q): expected %d tokens, got %d: %+v", raw, len(want), len(got), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Raw != w.raw || g.Kind != w.kind || g.Key != w.key || g.Project != w.project {
			t.Fatalf("scan(%q) token %d: expected %+v, got %+v", raw, i, w, g)
		}
		if raw[g.Start:g.End] != g.Raw {
			t.Fatalf("scan(%q) token %d: span %d:%d does not match raw %q", raw, i, g.Start, g.End, g.Raw)
		}
	}
}

func TestScanRecognisesEachKind(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []wantToken
	}{
		{"issue", "fix #42", []wantToken{{"#42", interfaces.ReferenceIssue, "42", ""}}},
		{"merge request", "see !7 please", []wantToken{{"!7", interfaces.ReferenceMergeRequest, "7", ""}}},
		{"milestone", "due in %3", []wantToken{{"%3", interfaces.ReferenceMilestone, "3", ""}}},
		{"user", "ask @fred for details", []wantToken{{"@fred", interfaces.ReferenceUser, "fred", ""}}},
		{"commit", "reverts 1a2b3c4d5e", []wantToken{{"1a2b3c4d5e", interfaces.ReferenceCommit, "1a2b3c4d5e", ""}}},
		{"scenario", "fix #42\n\nask @fred for details", []wantToken{
			{"#42", interfaces.ReferenceIssue, "42", ""},
			{"@fred", interfaces.ReferenceUser, "fred", ""},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertTokens(t, tc.raw, collect(tc.raw), tc.want)
		})
	}
}

func TestScanDoesNotAbsorbTrailingPunctuation(t *testing.T) {
	raw := "closes #12, #13. thanks @fred. (see !4)"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"#12", interfaces.ReferenceIssue, "12", ""},
		{"#13", interfaces.ReferenceIssue, "13", ""},
		{"@fred", interfaces.ReferenceUser, "fred", ""},
		{"!4", interfaces.ReferenceMergeRequest, "4", ""},
	})

	raw = "cc @jane.doe-, @bob_"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"@jane.doe", interfaces.ReferenceUser, "jane.doe", ""},
		{"@bob_", interfaces.ReferenceUser, "bob_", ""},
	})
}

func TestScanIgnoresSigilsWithoutIDs(t *testing.T) {
	for _, raw := range []string{
		"# heading",
		"wow! great",
		"100% done",
		"email me @ home",
		"#abc",
		"#12abc",
		"&#42;",
		"issue#",
		`escaped \#42`,
	} {
		if got := collect(raw); len(got) != 0 {
			t.Fatalf("scan(%q): expected no tokens, got %+v", raw, got)
		}
	}
}

func TestScanSkipsCodeAndLinks(t *testing.T) {
	cases := []string{
		"use `#42` literally",
		"```\nfix #42\n```",
		"~~~go\n// @fred\n~~~",
		"```\nunterminated #42",
		"[#42](https://example.com/#42)",
		"visit https://example.com/issues#42 now",
		"visit www.example.com/@fred",
		"<https://example.com/#1>",
		`<a href="/x">#42</a>`,
		"mail fred@example.com",
	}
	for _, raw := range cases {
		if got := collect(raw); len(got) != 0 {
			t.Fatalf("scan(%q): expected no tokens, got %+v", raw, got)
		}
	}

	raw := "```\n#1\n```\nafter #2 and `#3` then #4"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"#2", interfaces.ReferenceIssue, "2", ""},
		{"#4", interfaces.ReferenceIssue, "4", ""},
	})
}

func TestScanTreatsNonASCIILettersAsWordCharacters(t *testing.T) {
	for _, raw := range []string{
		"ask @josé for details",
		"café#12",
		"see #12é",
		"naïve!3",
	} {
		if got := collect(raw); len(got) != 0 {
			t.Fatalf("scan(%q): expected no tokens, got %+v", raw, got)
		}
	}

	raw := "voilà #12, über @fred"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"#12", interfaces.ReferenceIssue, "12", ""},
		{"@fred", interfaces.ReferenceUser, "fred", ""},
	})
}

func TestScanRejectsImplausibleQualifiers(t *testing.T) {
	for _, raw := range []string{
		"bob@cafe123.com",
		"grew 50%2 times",
		"see 2024/05#3",
		"host cafe123.example",
	} {
		if got := collect(raw); len(got) != 0 {
			t.Fatalf("scan(%q): expected no tokens, got %+v", raw, got)
		}
	}

	raw := "fixed in cafe123. thanks"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"cafe123", interfaces.ReferenceCommit, "cafe123", ""},
	})
}

func TestScanCrossProjectQualifiers(t *testing.T) {
	raw := "see acme/api#9, web!2, ops/infra%1 and acme/api@1a2b3c4"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"acme/api#9", interfaces.ReferenceIssue, "9", "acme/api"},
		{"web!2", interfaces.ReferenceMergeRequest, "2", "web"},
		{"ops/infra%1", interfaces.ReferenceMilestone, "1", "ops/infra"},
		{"acme/api@1a2b3c4", interfaces.ReferenceCommit, "1a2b3c4", "acme/api"},
	})

	s := scanner.New(scanner.Options{})
	if got := s.Collect("see acme/api#9"); len(got) != 0 {
		t.Fatalf("expected qualified reference to be ignored when cross-project is disabled, got %+v", got)
	}
}

func TestScanPrecedence(t *testing.T) {
	// The sigil decides the kind even when the name is numeric or hex.
	raw := "@123 and @deadbeef1"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"@123", interfaces.ReferenceUser, "123", ""},
		{"@deadbeef1", interfaces.ReferenceUser, "deadbeef1", ""},
	})

	// A qualified form starting on a hex word beats the bare commit form.
	raw = "abc1234#5"
	assertTokens(t, raw, collect(raw), []wantToken{
		{"abc1234#5", interfaces.ReferenceIssue, "5", "abc1234"},
	})

	// Plain numbers and plain words are never commits.
	for _, raw := range []string{"1234567", "defaced", "cafebabe"} {
		if got := collect(raw); len(got) != 0 {
			t.Fatalf("scan(%q): expected no commit token, got %+v", raw, got)
		}
	}
}

func TestScanRespectsEnabledKinds(t *testing.T) {
	s := scanner.New(scanner.Options{Kinds: []interfaces.ReferenceKind{interfaces.ReferenceUser}})
	raw := "fix #1 for @fred in 1a2b3c4"
	assertTokens(t, raw, s.Collect(raw), []wantToken{
		{"@fred", interfaces.ReferenceUser, "fred", ""},
	})
}

func TestScanIsRestartableAndStoppable(t *testing.T) {
	seq := scanner.Scan("#1 #2 #3")

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 3 || second != 3 {
		t.Fatalf("expected restartable sequence of 3, got %d then %d", first, second)
	}

	seen := 0
	for range seq {
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("expected early stop after one token, got %d", seen)
	}
}
