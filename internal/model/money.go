package model

import "fmt"

// Currency is the unit every amount in the system is expressed in.
const Currency = "THB"

// Denomination is the face value of an accepted coin or note, in minor currency units.
type Denomination int

// MoneyKind classifies a denomination as a coin or a note.
type MoneyKind string

const (
	// KindCoin is a physical coin.
	KindCoin MoneyKind = "coin"
	// KindNote is a paper note.
	KindNote MoneyKind = "note"
)

// denominationTable is the fixed money catalog, ordered by face value.
var denominationTable = []struct {
	value Denomination
	kind  MoneyKind
}{
	{1, KindCoin},
	{5, KindCoin},
	{10, KindCoin},
	{20, KindNote},
	{50, KindNote},
	{100, KindNote},
	{500, KindNote},
	{1000, KindNote},
}

// Denominations returns every accepted denomination in ascending order.
func Denominations() []Denomination {
	out := make([]Denomination, len(denominationTable))
	for i, d := range denominationTable {
		out[i] = d.value
	}
	return out
}

// Valid reports whether d is part of the money catalog.
func (d Denomination) Valid() bool {
	_, ok := d.lookup()
	return ok
}

// Kind returns the coin/note classification of d. Unknown values have no kind.
func (d Denomination) Kind() MoneyKind {
	kind, _ := d.lookup()
	return kind
}

// String renders the denomination with its currency, e.g. "20 THB".
func (d Denomination) String() string {
	return fmt.Sprintf("%d %s", int(d), Currency)
}

func (d Denomination) lookup() (MoneyKind, bool) {
	for _, entry := range denominationTable {
		if entry.value == d {
			return entry.kind, true
		}
	}
	return "", false
}

// ParseDenomination converts an integer into a catalog denomination.
func ParseDenomination(v int) (Denomination, error) {
	d := Denomination(v)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownDenomination, v)
	}
	return d, nil
}

// MoneyStock is the backend's count of one denomination held by the machine.
type MoneyStock struct {
	Type     MoneyKind
	Denom    Denomination
	Quantity int
}
