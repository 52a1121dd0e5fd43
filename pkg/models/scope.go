package models

import (
	"fmt"
	"strings"

	"teamfeed/pkg/errs"
)

// EntityType names the kind of business entity a conversation hangs off.
type EntityType string

const (
	EntityContact EntityType = "contact"
	EntityProject EntityType = "project"
	EntityGlobal  EntityType = "global"
)

// Scope identifies a conversation stream. Messages are partitioned by
// scope; the zero EntityID is only valid for the global scope.
type Scope struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId,omitempty"`
}

// GlobalScope is the shared workspace channel.
var GlobalScope = Scope{EntityType: EntityGlobal}

// Validate checks the scope shape without consulting any directory.
func (s Scope) Validate() error {
	switch s.EntityType {
	case EntityContact, EntityProject:
		if s.EntityID == "" {
			return errs.Validation("entityId required for %s scope", s.EntityType)
		}
		// ':' is the storage key separator; an id containing it would
		// land inside another scope's key range.
		if strings.ContainsRune(s.EntityID, ':') {
			return errs.Validation("entityId must not contain ':'")
		}
	case EntityGlobal:
		if s.EntityID != "" {
			return errs.Validation("entityId must be empty for global scope")
		}
	default:
		return errs.Validation("unknown entityType %q", string(s.EntityType))
	}
	return nil
}

// Key returns the stable storage partition key for the scope.
func (s Scope) Key() string {
	if s.EntityType == EntityGlobal {
		return "global"
	}
	return fmt.Sprintf("%s:%s", s.EntityType, s.EntityID)
}

func (s Scope) String() string { return s.Key() }
