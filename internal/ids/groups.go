package ids

import "sort"

// Groups maps a bucket (prefix or OtherPrefix) to its identifiers. Each
// bucket is a set; order is not meaningful.
type Groups map[string][]string

// Add inserts id into its bucket unless already present.
func (g Groups) Add(id string) {
	b := BucketOf(id)
	for _, existing := range g[b] {
		if existing == id {
			return
		}
	}
	g[b] = append(g[b], id)
}

// Merge adds every identifier of other into g.
func (g Groups) Merge(other Groups) {
	for _, list := range other {
		for _, id := range list {
			g.Add(id)
		}
	}
}

// Contains reports whether id is present.
func (g Groups) Contains(id string) bool {
	for _, existing := range g[BucketOf(id)] {
		if existing == id {
			return true
		}
	}
	return false
}

// Len returns the number of distinct identifiers.
func (g Groups) Len() int {
	n := 0
	for _, list := range g {
		n += len(list)
	}
	return n
}

// All returns every identifier, sorted.
func (g Groups) All() []string {
	out := make([]string, 0, g.Len())
	for _, list := range g {
		out = append(out, list...)
	}
	sort.Strings(out)
	return out
}

// WithPrefix returns the sorted identifiers whose literal prefix is p.
// Unlike indexing the map, this also finds ids in the OTHER bucket.
func (g Groups) WithPrefix(p string) []string {
	bucket := p
	if !IsKnownPrefix(p) {
		bucket = OtherPrefix
	}
	var out []string
	for _, id := range g[bucket] {
		if PrefixOf(id) == p {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Equal reports whether g and other hold the same identifiers per bucket.
func (g Groups) Equal(other Groups) bool {
	if g.Len() != other.Len() {
		return false
	}
	for _, list := range g {
		for _, id := range list {
			if !other.Contains(id) {
				return false
			}
		}
	}
	return true
}
