package sync

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tmorishita/penflow/internal/models"
)

// DetectFunc decides whether two copies of a record have diverged. The
// engine defaults to DetectDivergence; tests and future policies may swap
// it.
type DetectFunc func(local, remote models.Record) bool

// DetectDivergence reports whether the two copies carry independent
// mutation lineages. Equal timestamps are never a conflict (a version-only
// difference is a documented blind spot). With distinct timestamps, equal
// versions always mean both sides wrote independently: every write bumps
// the version by exactly one, so an ancestor and its descendant can never
// share a version. Unequal versions fork only when the two orderings
// oppose each other (more versions on one side, a newer timestamp on the
// other); one side strictly ahead on both signals is a pure descendant.
// Symmetric in its arguments, pure.
func DetectDivergence(local, remote models.Record) bool {
	if local.LastUpdated() == remote.LastUpdated() {
		return false
	}
	if local.RecordVersion() == remote.RecordVersion() {
		return true
	}
	if remote.RecordVersion() > local.RecordVersion() && remote.LastUpdated() > local.LastUpdated() {
		return false
	}
	if local.RecordVersion() > remote.RecordVersion() && local.LastUpdated() > remote.LastUpdated() {
		return false
	}
	return true
}

// ConflictFields returns the top-level JSON field names whose serialized
// values differ between the two records, sorted. Bookkeeping keys starting
// with "_" are excluded.
func ConflictFields(local, remote models.Record) ([]string, error) {
	localMap, err := toMap(local)
	if err != nil {
		return nil, err
	}
	remoteMap, err := toMap(remote)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var fields []string
	check := func(key string) {
		if seen[key] || strings.HasPrefix(key, "_") {
			return
		}
		seen[key] = true
		a, aok := localMap[key]
		b, bok := remoteMap[key]
		if aok != bok || !jsonEqual(a, b) {
			fields = append(fields, key)
		}
	}
	for key := range localMap {
		check(key)
	}
	for key := range remoteMap {
		check(key)
	}
	sort.Strings(fields)
	return fields, nil
}

func toMap(rec models.Record) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}
