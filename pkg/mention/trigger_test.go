package mention

import "testing"

func caretAt(text string) int { return len([]rune(text)) }

func TestDetectTriggerBasic(t *testing.T) {
	tr, ok := DetectTrigger("hello @ow", caretAt("hello @ow"))
	if !ok {
		t.Fatalf("expected trigger")
	}
	if tr.Char != TriggerMention {
		t.Fatalf("expected '@', got %q", tr.Char)
	}
	if tr.Query != "ow" {
		t.Fatalf("expected query 'ow', got %q", tr.Query)
	}
	if tr.Start != 6 {
		t.Fatalf("expected start 6, got %d", tr.Start)
	}
}

func TestDetectTriggerEmptyQuery(t *testing.T) {
	tr, ok := DetectTrigger("see #", caretAt("see #"))
	if !ok {
		t.Fatalf("expected trigger for bare '#'")
	}
	if tr.Char != TriggerTag || tr.Query != "" {
		t.Fatalf("expected empty tag query, got char=%q query=%q", tr.Char, tr.Query)
	}
}

func TestDetectTriggerNone(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		caret int
	}{
		{"plain text", "hello world", caretAt("hello world")},
		{"empty text", "", 0},
		{"caret after completed mention", "hi @owner ", caretAt("hi @owner ")},
		{"email address", "mail user@domain.com", caretAt("mail user@domain.com")},
		{"caret before trigger", "hello @ow", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := DetectTrigger(tc.text, tc.caret); ok {
				t.Fatalf("unexpected trigger in %q at %d", tc.text, tc.caret)
			}
		})
	}
}

func TestDetectTriggerCaretOutOfRange(t *testing.T) {
	// caret beyond the text clamps to the end instead of panicking
	tr, ok := DetectTrigger("@al", 100)
	if !ok || tr.Query != "al" {
		t.Fatalf("expected clamped trigger, got ok=%v query=%q", ok, tr.Query)
	}
	if _, ok := DetectTrigger("@al", -5); ok {
		t.Fatalf("negative caret should clamp to start and find nothing")
	}
}

func TestDetectTriggerUnicode(t *testing.T) {
	text := "héllo @Zoë"
	tr, ok := DetectTrigger(text, caretAt(text))
	if !ok {
		t.Fatalf("expected trigger")
	}
	if tr.Query != "Zoë" {
		t.Fatalf("expected query 'Zoë', got %q", tr.Query)
	}
}

func TestInsertMentionRoundTrip(t *testing.T) {
	text := "hello @ow"
	out, caret := InsertMention(text, caretAt(text), "@owner")
	if out != "hello @owner " {
		t.Fatalf("expected %q, got %q", "hello @owner ", out)
	}
	if caret != caretAt("hello @owner ") {
		t.Fatalf("expected caret after inserted space, got %d", caret)
	}
	// the rewritten text has no active trigger anymore
	if _, ok := DetectTrigger(out, caret); ok {
		t.Fatalf("inserted mention should close the trigger span")
	}
}

func TestInsertMentionPreservesTail(t *testing.T) {
	// caret mid-text: everything after the original caret survives
	text := "ping @al and others"
	caret := caretAt("ping @al")
	out, newCaret := InsertMention(text, caret, "@alice")
	if out != "ping @alice  and others" {
		t.Fatalf("unexpected rewrite: %q", out)
	}
	if newCaret != caretAt("ping @alice ") {
		t.Fatalf("unexpected caret: %d", newCaret)
	}
}

func TestInsertMentionNoTrigger(t *testing.T) {
	text := "nothing here"
	out, caret := InsertMention(text, caretAt(text), "@owner")
	if out != text || caret != caretAt(text) {
		t.Fatalf("expected unchanged input, got %q caret %d", out, caret)
	}
}
