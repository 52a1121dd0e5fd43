// Package directory resolves mention and tag autocomplete candidates. It
// filters and ranks entries owned by external user/project collaborators; it
// never caches beyond a single query so a changing directory is always
// reflected on the next keystroke.
package directory

import (
	"context"
	"sort"
	"strings"

	"teamfeed/pkg/models"
)

// MaxResults caps every query, matching the suggestion popup size.
const MaxResults = 6

// User is a row from the external user directory.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is a row from the external project directory.
type Project struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// UserSource lists workspace users. Implementations are external
// collaborators (a database, an HTTP directory service, a static fixture).
type UserSource interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// ProjectSource lists projects available as tag targets.
type ProjectSource interface {
	ListProjects(ctx context.Context) ([]Project, error)
}

// Index queries and ranks directory entries. It owns no data.
type Index struct {
	users    UserSource
	projects ProjectSource
}

func New(users UserSource, projects ProjectSource) *Index {
	return &Index{users: users, projects: projects}
}

type ranked struct {
	entry models.DirectoryEntry
	pos   int
}

func rank(entries []models.DirectoryEntry, query string) []models.DirectoryEntry {
	q := strings.ToLower(query)
	matches := make([]ranked, 0, len(entries))
	for _, e := range entries {
		pos := strings.Index(strings.ToLower(e.DisplayName), q)
		if pos < 0 {
			continue
		}
		matches = append(matches, ranked{entry: e, pos: pos})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].pos != matches[j].pos {
			return matches[i].pos < matches[j].pos
		}
		return matches[i].entry.DisplayName < matches[j].entry.DisplayName
	})
	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	out := make([]models.DirectoryEntry, len(matches))
	for i, m := range matches {
		out[i] = m.entry
	}
	return out
}

// QueryUsers returns user entries whose display name contains query
// (case-insensitive), ranked by first-match position then alphabetically,
// capped at MaxResults. An empty query matches everyone up to the cap.
func (ix *Index) QueryUsers(ctx context.Context, query string) ([]models.DirectoryEntry, error) {
	users, err := ix.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.DirectoryEntry, len(users))
	for i, u := range users {
		entries[i] = models.DirectoryEntry{ID: u.ID, DisplayName: u.Name, Kind: models.EntryUser}
	}
	return rank(entries, query), nil
}

// QueryTags returns project entries matching query, with the same ranking
// rules as QueryUsers.
func (ix *Index) QueryTags(ctx context.Context, query string) ([]models.DirectoryEntry, error) {
	projects, err := ix.projects.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.DirectoryEntry, len(projects))
	for i, p := range projects {
		entries[i] = models.DirectoryEntry{ID: p.ID, DisplayName: p.Title, Kind: models.EntryProject}
	}
	return rank(entries, query), nil
}

// ActiveUserIDs returns every user id known to the directory. The
// notification dispatcher uses this for global-scope fan-out.
func (ix *Index) ActiveUserIDs(ctx context.Context) ([]string, error) {
	users, err := ix.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out, nil
}

// StaticUsers is a fixed UserSource, used by config-seeded deployments and
// tests.
type StaticUsers []User

func (s StaticUsers) ListUsers(ctx context.Context) ([]User, error) {
	return append([]User(nil), s...), nil
}

// StaticProjects is a fixed ProjectSource.
type StaticProjects []Project

func (s StaticProjects) ListProjects(ctx context.Context) ([]Project, error) {
	return append([]Project(nil), s...), nil
}
