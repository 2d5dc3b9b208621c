package domain

import (
	"slices"
	"strconv"
	"strings"
)

// CategoryScope is the set of categories a moderator may act on. It is either
// every category or an explicit set; a restricted scope with no ids allows
// nothing.
type CategoryScope struct {
	restricted bool
	ids        map[int64]struct{}
}

// AllCategories returns the unrestricted scope.
func AllCategories() CategoryScope {
	return CategoryScope{}
}

// RestrictedTo returns a scope limited to the given category ids.
func RestrictedTo(ids ...int64) CategoryScope {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return CategoryScope{restricted: true, ids: set}
}

// ScopeFromList maps the stored moderation_categories column to a scope: a
// NULL or empty list means all categories.
func ScopeFromList(ids []int64) CategoryScope {
	if len(ids) == 0 {
		return AllCategories()
	}
	return RestrictedTo(ids...)
}

// IsAll reports whether the scope is unrestricted.
func (s CategoryScope) IsAll() bool {
	return !s.restricted
}

// Allows reports whether categoryID is inside the scope.
func (s CategoryScope) Allows(categoryID int64) bool {
	if !s.restricted {
		return true
	}
	_, ok := s.ids[categoryID]
	return ok
}

// IDs returns the sorted category ids of a restricted scope, or nil when the
// scope is unrestricted.
func (s CategoryScope) IDs() []int64 {
	if !s.restricted {
		return nil
	}
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s CategoryScope) String() string {
	if !s.restricted {
		return "all"
	}
	parts := make([]string, 0, len(s.ids))
	for _, id := range s.IDs() {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
