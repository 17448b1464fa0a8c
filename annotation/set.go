package annotation

import (
	"sort"
	"strings"

	"github.com/maruel/natural"

	"annmerge/common"
)

// Supersedes reports whether incoming record should replace existing one
// with the same fingerprint. Re-import of the same data is allowed to
// overwrite, older data never is.
func Supersedes(incoming, existing *Annotation) bool {
	return incoming.LastModification >= existing.LastModification
}

// Union merges incoming annotations into existing ones keying them by
// fingerprint. Result order is unspecified, use Sort.
func Union(existing, incoming []Annotation) []Annotation {
	index := make(map[string]int, len(existing)+len(incoming))
	out := make([]Annotation, 0, len(existing)+len(incoming))
	add := func(a Annotation) {
		fp := a.Fingerprint()
		if i, ok := index[fp]; ok {
			if Supersedes(&a, &out[i]) {
				out[i] = a
			}
			return
		}
		index[fp] = len(out)
		out = append(out, a)
	}
	for _, a := range existing {
		add(a)
	}
	for _, a := range incoming {
		add(a)
	}
	return out
}

// Sort orders annotations by configured key. When sorting by location,
// records without LocationSort go after located ones ordered by time. Ties
// are broken by fingerprint so the order is always total.
func Sort(list []Annotation, key common.SortKey) {
	type keyed struct {
		a  Annotation
		fp string
	}
	items := make([]keyed, len(list))
	for i := range list {
		items[i] = keyed{a: list[i], fp: list[i].Fingerprint()}
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := &items[i].a, &items[j].a
		c := 0
		if key != common.SortKeyTimestamp {
			c = compareLocation(a, b)
		}
		if c == 0 {
			c = compareTime(a, b)
		}
		if c == 0 {
			return items[i].fp < items[j].fp
		}
		return c < 0
	})
	for i := range items {
		list[i] = items[i].a
	}
}

func compareTime(a, b *Annotation) int {
	switch {
	case a.LastModification < b.LastModification:
		return -1
	case a.LastModification > b.LastModification:
		return 1
	}
	return 0
}

func compareLocation(a, b *Annotation) int {
	switch {
	case a.LocationSort == b.LocationSort:
		return 0
	case a.LocationSort == "":
		return 1
	case b.LocationSort == "":
		return -1
	case natural.Less(a.LocationSort, b.LocationSort):
		return -1
	case natural.Less(b.LocationSort, a.LocationSort):
		return 1
	}
	// naturally equal ("0010" and "10")
	return strings.Compare(a.LocationSort, b.LocationSort)
}
