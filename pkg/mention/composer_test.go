package mention

import (
	"context"
	"testing"

	"teamfeed/pkg/directory"
	"teamfeed/pkg/models"
)

func testIndex() *directory.Index {
	users := directory.StaticUsers{
		{ID: "u1", Name: "owner"},
		{ID: "u2", Name: "alice"},
		{ID: "u3", Name: "albert"},
	}
	projects := directory.StaticProjects{
		{ID: "p1", Title: "website"},
		{ID: "p2", Title: "mobile app"},
	}
	return directory.New(users, projects)
}

func TestComposerIdleWithoutTrigger(t *testing.T) {
	c := NewComposer(testIndex())
	st := c.Update(context.Background(), "plain text", caretAt("plain text"))
	if st.Phase != PhaseIdle {
		t.Fatalf("expected idle phase")
	}
	if len(st.Candidates) != 0 {
		t.Fatalf("idle state must carry no candidates")
	}
}

func TestComposerSuggestsUsers(t *testing.T) {
	c := NewComposer(testIndex())
	st := c.Update(context.Background(), "hey @al", caretAt("hey @al"))
	if st.Phase != PhaseSuggesting {
		t.Fatalf("expected suggesting phase")
	}
	if len(st.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(st.Candidates))
	}
	// prefix matches rank first, ties alphabetical
	if st.Candidates[0].DisplayName != "albert" || st.Candidates[1].DisplayName != "alice" {
		t.Fatalf("unexpected order: %v", st.Candidates)
	}
	for _, e := range st.Candidates {
		if e.Kind != models.EntryUser {
			t.Fatalf("expected user entries, got %v", e.Kind)
		}
	}
}

func TestComposerSuggestsProjectsForTag(t *testing.T) {
	c := NewComposer(testIndex())
	st := c.Update(context.Background(), "#web", caretAt("#web"))
	if st.Phase != PhaseSuggesting {
		t.Fatalf("expected suggesting phase")
	}
	if len(st.Candidates) != 1 || st.Candidates[0].DisplayName != "website" {
		t.Fatalf("unexpected candidates: %v", st.Candidates)
	}
	if st.Candidates[0].Kind != models.EntryProject {
		t.Fatalf("expected project entry")
	}
}

func TestComposerAcceptRewritesText(t *testing.T) {
	c := NewComposer(testIndex())
	text := "hey @al"
	st := c.Update(context.Background(), text, caretAt(text))
	out, caret := c.Accept(text, caretAt(text), st.Candidates[1])
	if out != "hey @alice " {
		t.Fatalf("expected %q, got %q", "hey @alice ", out)
	}
	// back to idle on the rewritten text
	after := c.Update(context.Background(), out, caret)
	if after.Phase != PhaseIdle {
		t.Fatalf("expected idle after accept")
	}
}
