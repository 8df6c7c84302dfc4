// pkg/core/mapping.go
package core

// Unassigned marks a slot with no assignment in a Mapping.
const Unassigned = -1

// Mapping assigns, for each drone index, the index of the target marker the
// drone was matched to, or Unassigned. The same representation is used for the
// inverse direction (drone per target index) by the planning service.
type Mapping []int

// NewMapping creates a mapping of the given length with every slot unassigned.
func NewMapping(length int) Mapping {
	m := make(Mapping, length)
	for i := range m {
		m[i] = Unassigned
	}
	return m
}

// NumAssigned returns the number of slots that carry an assignment.
func (m Mapping) NumAssigned() int {
	n := 0
	for _, t := range m {
		if t != Unassigned {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the mapping.
func (m Mapping) Clone() Mapping {
	if m == nil {
		return nil
	}
	out := make(Mapping, len(m))
	copy(out, m)
	return out
}

// Equal reports whether two mappings have identical length and contents.
func (m Mapping) Equal(other Mapping) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}
