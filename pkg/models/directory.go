package models

// EntryKind distinguishes mention targets from tag targets.
type EntryKind string

const (
	EntryUser    EntryKind = "user"
	EntryProject EntryKind = "project"
)

// DirectoryEntry is a candidate autocomplete target. The underlying data is
// owned by the external user/project directories; this is a query result,
// never a stored record.
type DirectoryEntry struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Kind        EntryKind `json:"kind"`
}
