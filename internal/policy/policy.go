// Package policy decides which owners may run sync operations.
package policy

import (
	"os"
	"strconv"
	"strings"
)

// Policy answers capability checks for sync operations.
type Policy interface {
	CanSync(ownerID int64) bool
}

// AllowList is a Policy backed by an explicit set of owner ids.
type AllowList struct {
	owners map[int64]struct{}
}

// FromEnv builds the allow-list from the SYNC_ALLOWED_OWNERS environment
// variable, a comma-separated list of athlete ids. Unset or empty means
// nobody may sync.
func FromEnv() *AllowList {
	return Parse(os.Getenv("SYNC_ALLOWED_OWNERS"))
}

// Parse builds an allow-list from a comma-separated id list. Blank and
// malformed entries are skipped.
func Parse(raw string) *AllowList {
	owners := make(map[int64]struct{})
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		owners[id] = struct{}{}
	}
	return &AllowList{owners: owners}
}

func (a *AllowList) CanSync(ownerID int64) bool {
	_, ok := a.owners[ownerID]
	return ok
}
