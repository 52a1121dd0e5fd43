package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

var testUsers = StaticUsers{
	{ID: "u1", Name: "Marina"},
	{ID: "u2", Name: "Omar"},
	{ID: "u3", Name: "Rosa"},
	{ID: "u4", Name: "Mario"},
}

func TestQueryUsersSubstringCaseInsensitive(t *testing.T) {
	ix := New(testUsers, StaticProjects{})
	got, err := ix.QueryUsers(context.Background(), "MAR")
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	// "Marina" and "Mario" match at position 0 and sort alphabetically;
	// "Omar" matches at position 1 and comes last.
	want := []string{"Marina", "Mario", "Omar"}
	for i, name := range want {
		if got[i].DisplayName != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, got[i].DisplayName)
		}
	}
}

func TestQueryUsersEmptyQueryReturnsAll(t *testing.T) {
	ix := New(testUsers, StaticProjects{})
	got, err := ix.QueryUsers(context.Background(), "")
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if len(got) != len(testUsers) {
		t.Fatalf("expected all %d users, got %d", len(testUsers), len(got))
	}
}

func TestQueryUsersCap(t *testing.T) {
	var many StaticUsers
	for i := 0; i < 20; i++ {
		many = append(many, User{ID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("user%02d", i)})
	}
	ix := New(many, StaticProjects{})
	got, err := ix.QueryUsers(context.Background(), "user")
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if len(got) != MaxResults {
		t.Fatalf("expected cap of %d, got %d", MaxResults, len(got))
	}
}

func TestQueryUsersNoMatch(t *testing.T) {
	ix := New(testUsers, StaticProjects{})
	got, err := ix.QueryUsers(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

type failingUsers struct{}

func (failingUsers) ListUsers(ctx context.Context) ([]User, error) {
	return nil, errors.New("directory unavailable")
}

func TestQueryUsersSourceError(t *testing.T) {
	ix := New(failingUsers{}, StaticProjects{})
	if _, err := ix.QueryUsers(context.Background(), "a"); err == nil {
		t.Fatalf("expected source error to propagate")
	}
}

func TestQueryTags(t *testing.T) {
	projects := StaticProjects{
		{ID: "p1", Title: "Website Redesign"},
		{ID: "p2", Title: "Mobile App"},
	}
	ix := New(StaticUsers{}, projects)
	got, err := ix.QueryTags(context.Background(), "site")
	if err != nil {
		t.Fatalf("QueryTags: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("unexpected tag results: %v", got)
	}
}

func TestActiveUserIDs(t *testing.T) {
	ix := New(testUsers, StaticProjects{})
	ids, err := ix.ActiveUserIDs(context.Background())
	if err != nil {
		t.Fatalf("ActiveUserIDs: %v", err)
	}
	if len(ids) != len(testUsers) {
		t.Fatalf("expected %d ids, got %d", len(testUsers), len(ids))
	}
}
