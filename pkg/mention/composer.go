package mention

import (
	"context"

	"teamfeed/pkg/directory"
	"teamfeed/pkg/models"
)

// Phase is the composer autocomplete state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSuggesting
)

// State is the full autocomplete state derived from (text, caret). It is a
// value: rendering layers may hold it without synchronization.
type State struct {
	Phase      Phase
	Trigger    Trigger
	Candidates []models.DirectoryEntry
}

// Composer drives the Idle -> Suggesting -> Idle state machine against a
// directory index. It holds no mutable state of its own; Update is a pure
// function of its inputs plus the current directory contents.
type Composer struct {
	dir *directory.Index
}

func NewComposer(dir *directory.Index) *Composer {
	return &Composer{dir: dir}
}

// Update recomputes the state for the given text and caret. Directory
// failures degrade to an empty candidate list; the trigger span itself is
// still reported so the UI can keep the popup open.
func (c *Composer) Update(ctx context.Context, text string, caret int) State {
	tr, ok := DetectTrigger(text, caret)
	if !ok {
		return State{Phase: PhaseIdle}
	}
	var (
		cands []models.DirectoryEntry
		err   error
	)
	switch tr.Char {
	case TriggerMention:
		cands, err = c.dir.QueryUsers(ctx, tr.Query)
	case TriggerTag:
		cands, err = c.dir.QueryTags(ctx, tr.Query)
	}
	if err != nil {
		cands = nil
	}
	return State{Phase: PhaseSuggesting, Trigger: tr, Candidates: cands}
}

// Accept rewrites text with the chosen entry and returns the new text and
// caret. The inserted value keeps the trigger character so the mention stays
// recognizable as literal text ("@owner ", "#website ").
func (c *Composer) Accept(text string, caret int, entry models.DirectoryEntry) (string, int) {
	tr, ok := DetectTrigger(text, caret)
	if !ok {
		return text, caret
	}
	return InsertMention(text, caret, string(tr.Char)+entry.DisplayName)
}
