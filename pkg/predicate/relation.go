package predicate

import (
	"fmt"
	"strings"
)

// Relation is one of the topological operators the supported databases
// evaluate. The set is closed: adding an operator means adding a constant.
type Relation int

const (
	Within Relation = iota + 1
	Crosses
	Contains
	Disjoint
	Equals
	Intersects
	Overlaps
	Touches
)

var relationNames = map[Relation]string{
	Within:     "Within",
	Crosses:    "Crosses",
	Contains:   "Contains",
	Disjoint:   "Disjoint",
	Equals:     "Equals",
	Intersects: "Intersects",
	Overlaps:   "Overlaps",
	Touches:    "Touches",
}

// Relations lists every supported relation in declaration order.
func Relations() []Relation {
	return []Relation{Within, Crosses, Contains, Disjoint, Equals, Intersects, Overlaps, Touches}
}

func (r Relation) String() string {
	if name, ok := relationNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Relation(%d)", int(r))
}

func (r Relation) valid() bool {
	_, ok := relationNames[r]
	return ok
}

// ParseRelation accepts a relation name in any letter case.
func ParseRelation(name string) (Relation, error) {
	for r, n := range relationNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRelation, name)
}
