// Package partition defines the division/gender work units the collector
// schedules independently, and the precedence order used to pick a canonical
// owner when the same game is listed by more than one partition.
package partition

import (
	"fmt"
	"strings"
)

// Division is an NCAA competitive division.
type Division string

const (
	DivisionD1 Division = "d1"
	DivisionD2 Division = "d2"
	DivisionD3 Division = "d3"
)

// Gender is a gender category.
type Gender string

const (
	GenderMen   Gender = "men"
	GenderWomen Gender = "women"
)

// Divisions lists all divisions in precedence order (d1 first).
var Divisions = []Division{DivisionD1, DivisionD2, DivisionD3}

// Genders lists all gender categories in precedence order (men first).
var Genders = []Gender{GenderMen, GenderWomen}

// divisionRank and genderRank define the fixed precedence used for owner
// selection. Lower rank wins.
var divisionRank = map[Division]int{
	DivisionD1: 0,
	DivisionD2: 1,
	DivisionD3: 2,
}

var genderRank = map[Gender]int{
	GenderMen:   0,
	GenderWomen: 1,
}

// ParseDivision parses a division string ("d1", "d2", "d3").
func ParseDivision(s string) (Division, error) {
	d := Division(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := divisionRank[d]; !ok {
		return "", fmt.Errorf("partition: unknown division %q", s)
	}
	return d, nil
}

// ParseGender parses a gender string ("men", "women").
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := genderRank[g]; !ok {
		return "", fmt.Errorf("partition: unknown gender %q", s)
	}
	return g, nil
}

// Key identifies one division/gender partition.
type Key struct {
	Division Division `json:"division"`
	Gender   Gender   `json:"gender"`
}

// ParseKey parses a "division/gender" pair, e.g. "d1/men".
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("partition: invalid key %q, want division/gender", s)
	}
	d, err := ParseDivision(parts[0])
	if err != nil {
		return Key{}, err
	}
	g, err := ParseGender(parts[1])
	if err != nil {
		return Key{}, err
	}
	return Key{Division: d, Gender: g}, nil
}

func (k Key) String() string {
	return string(k.Division) + "/" + string(k.Gender)
}

// Valid reports whether both components are known values.
func (k Key) Valid() bool {
	_, dok := divisionRank[k.Division]
	_, gok := genderRank[k.Gender]
	return dok && gok
}

// rank maps a key onto a single integer preserving the precedence order.
func (k Key) rank() int {
	return divisionRank[k.Division]*len(genderRank) + genderRank[k.Gender]
}

// Order is a deterministic total order over partition keys. It must return
// true iff a precedes b, with no ties for distinct keys.
type Order func(a, b Key) bool

// DefaultOrder orders by division rank ascending, then gender rank ascending.
// This is the precedence used for owner selection: when a game is listed by
// several partitions, the minimum key under this order fetches it.
func DefaultOrder(a, b Key) bool {
	return a.rank() < b.rank()
}

// All returns every division/gender combination in precedence order.
func All() []Key {
	keys := make([]Key, 0, len(Divisions)*len(Genders))
	for _, d := range Divisions {
		for _, g := range Genders {
			keys = append(keys, Key{Division: d, Gender: g})
		}
	}
	return keys
}

// Min returns the minimum key in keys under the given order.
// Panics if keys is empty; callers guarantee at least one listing.
func Min(keys []Key, less Order) Key {
	if less == nil {
		less = DefaultOrder
	}
	min := keys[0]
	for _, k := range keys[1:] {
		if less(k, min) {
			min = k
		}
	}
	return min
}
