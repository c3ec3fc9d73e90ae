package metrics

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Labels is the caller-facing label mapping. A nil map is the empty label
// set; key order is irrelevant for identity.
type Labels map[string]string

// Label is one key/value dimension of a label set.
type Label struct {
	Key   string
	Value string
}

// labelSetPrefix starts every canonical encoding so encoded label sets can
// never collide with instrument names in compound keys.
const labelSetPrefix = "|#"

// LabelSet is the canonical, immutable form of a Labels map: pairs sorted by
// key, a stable string encoding, and an xxhash fingerprint of the encoding.
// Two LabelSets built from equivalent maps have equal encodings and equal
// fingerprints regardless of input order.
type LabelSet struct {
	pairs       []Label
	encoded     string
	fingerprint uint64
}

var emptyLabelSet = newLabelSetFromPairs(nil)

// NewLabelSet canonicalizes labels. The input map is copied; mutating it
// afterwards does not affect the set.
func NewLabelSet(labels Labels) LabelSet {
	if len(labels) == 0 {
		return emptyLabelSet
	}
	pairs := make([]Label, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, Label{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return newLabelSetFromPairs(pairs)
}

func newLabelSetFromPairs(pairs []Label) LabelSet {
	var b strings.Builder
	b.WriteString(labelSetPrefix)
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte(':')
		b.WriteString(p.Value)
	}
	enc := b.String()
	return LabelSet{
		pairs:       pairs,
		encoded:     enc,
		fingerprint: xxhash.Sum64String(enc),
	}
}

// Encoded returns the canonical string form, e.g. "|#k1:v1,k2:v2".
func (s LabelSet) Encoded() string { return s.encoded }

// Fingerprint returns the xxhash of the canonical encoding. Bound-instrument
// tables bucket by fingerprint and resolve collisions on the encoding.
func (s LabelSet) Fingerprint() uint64 { return s.fingerprint }

// Len returns the number of labels in the set.
func (s LabelSet) Len() int { return len(s.pairs) }

// Pairs returns the labels sorted by key. The returned slice is a copy.
func (s LabelSet) Pairs() []Label {
	out := make([]Label, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// Equal reports whether both sets contain the same pairs.
func (s LabelSet) Equal(o LabelSet) bool { return s.encoded == o.encoded }
