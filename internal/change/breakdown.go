// Package change renders the change breakdown the backend returns for a purchase.
package change

import (
	"fmt"
	"sort"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
)

// Row is one line of a rendered change breakdown.
type Row struct {
	Kind  model.MoneyKind
	Denom model.Denomination
	Qty   int
}

// Label renders the face value, e.g. "10 THB".
func (r Row) Label() string {
	return r.Denom.String()
}

// String renders the full row, e.g. "10 THB x1".
func (r Row) String() string {
	return fmt.Sprintf("%s x%d", r.Label(), r.Qty)
}

// Render sorts the backend's change detail by denomination, largest first.
// Entries are not merged: a denomination reported twice produces two rows in input order.
func Render(detail []model.ChangeItem) []Row {
	rows := make([]Row, len(detail))
	for i, item := range detail {
		rows[i] = Row{
			Denom: item.Denom,
			Qty:   item.Qty,
			Kind:  item.Denom.Kind(),
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Denom > rows[j].Denom
	})

	return rows
}
