package domain

import (
	"sort"
	"strconv"
)

// SelectBasin filters a bulletin's observations down to the basin envelope
// and identifier floor, grouped by system. The predicate is a strict AND of
// the box test and the numeric floor; rows failing any condition are dropped,
// and systems left with no admitted rows are omitted entirely.
//
// Output order is deterministic: groups sort by system number ascending, and
// rows within a group keep their bulletin order. Filtering is idempotent;
// reapplying the same parameters to a filtered result is a no-op.
func SelectBasin(observations []Observation, box BoundingBox, minSystemNumber int) []SystemGroup {
	groups := make(map[string]*SystemGroup)

	for _, obs := range observations {
		num, ok := SystemNumber(obs.SystemID)
		if !ok || num < minSystemNumber {
			continue
		}
		if !box.Contains(obs.Latitude, obs.Longitude) {
			continue
		}

		g, exists := groups[obs.SystemID]
		if !exists {
			g = &SystemGroup{SystemID: obs.SystemID, Number: num}
			groups[obs.SystemID] = g
		}
		g.Observations = append(g.Observations, obs)
	}

	out := make([]SystemGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].SystemID < out[j].SystemID
	})
	return out
}

// SystemNumber extracts the leading unsigned integer from a system
// identifier: "71" -> 71, "92S" -> 92. Identifiers with no leading digits
// have no position in the numeric ordering and report ok=false; callers
// exclude them rather than guessing.
func SystemNumber(id string) (int, bool) {
	i := 0
	for i < len(id) && id[i] >= '0' && id[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}
