// Package mention implements caret-relative trigger detection and mention
// insertion for the chat composer. Everything here is pure: it runs on every
// keystroke, so there is no I/O and no suspension.
package mention

import "unicode"

// TriggerMention and TriggerTag open user and project autocomplete.
const (
	TriggerMention = '@'
	TriggerTag     = '#'
)

// Trigger describes an active autocomplete span. Start is the rune index of
// the trigger character; the span runs from Start to the caret.
type Trigger struct {
	Char  rune
	Query string
	Start int
}

// boundary returns the rune index just after the nearest whitespace (or the
// start of text) preceding caret.
func boundary(runes []rune, caret int) int {
	b := caret
	for b > 0 && !unicode.IsSpace(runes[b-1]) {
		b--
	}
	return b
}

func clampCaret(runes []rune, caret int) int {
	if caret < 0 {
		return 0
	}
	if caret > len(runes) {
		return len(runes)
	}
	return caret
}

// DetectTrigger reports whether the caret sits inside an active mention or
// tag span. caret is a rune index into text. The span between the nearest
// preceding whitespace boundary and the caret is active when it begins with
// '@' or '#'; an empty query is valid and means "all candidates". A caret
// directly after a completed mention (trailing space) yields no trigger, and
// a mid-word '@' (user@domain.com) never does, because the span then starts
// with a regular character rather than the trigger.
func DetectTrigger(text string, caret int) (Trigger, bool) {
	runes := []rune(text)
	caret = clampCaret(runes, caret)
	b := boundary(runes, caret)
	if b >= caret {
		return Trigger{}, false
	}
	ch := runes[b]
	if ch != TriggerMention && ch != TriggerTag {
		return Trigger{}, false
	}
	return Trigger{Char: ch, Query: string(runes[b+1 : caret]), Start: b}, true
}

// InsertMention replaces the active trigger span (boundary..caret) with
// value followed by a single space, leaving everything after the original
// caret untouched. It returns the rewritten text and the new caret rune
// index, positioned immediately after the inserted space. When no trigger is
// active the input is returned unchanged.
func InsertMention(text string, caret int, value string) (string, int) {
	runes := []rune(text)
	caret = clampCaret(runes, caret)
	tr, ok := DetectTrigger(text, caret)
	if !ok {
		return text, caret
	}
	inserted := []rune(value + " ")
	out := make([]rune, 0, tr.Start+len(inserted)+len(runes)-caret)
	out = append(out, runes[:tr.Start]...)
	out = append(out, inserted...)
	out = append(out, runes[caret:]...)
	return string(out), tr.Start + len(inserted)
}
