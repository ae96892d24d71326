// Package catalog arranges the backend's product list for display.
package catalog

import (
	"sort"

	"github.com/Veraticus/blue-coffee-vending/internal/model"
)

// OtherLabel is shown for slot prefixes without a known category.
const OtherLabel = "Other"

// Group is a display category and the products that belong to it.
type Group struct {
	Key      string
	Label    string
	Icon     string
	Products []model.Product
}

var categories = map[string]struct {
	label string
	icon  string
}{
	"A": {label: "Drinks", icon: "🥤"},
	"B": {label: "Snacks", icon: "🍿"},
	"C": {label: "Nuts", icon: "🥜"},
}

// Label returns the display name for a category key.
func Label(key string) string {
	if c, ok := categories[key]; ok {
		return c.label
	}
	return OtherLabel
}

// GroupProducts partitions products by the first character of their slot code.
// Products keep their relative order within a group and groups are sorted by key.
// The input slice is not modified.
func GroupProducts(products []model.Product) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, p := range products {
		key := p.CategoryKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{
				Key:   key,
				Label: Label(key),
				Icon:  categories[key].icon,
			})
		}
		groups[i].Products = append(groups[i].Products, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key < groups[j].Key
	})

	return groups
}

// Flatten returns the products of groups in display order.
func Flatten(groups []Group) []model.Product {
	var out []model.Product
	for _, g := range groups {
		out = append(out, g.Products...)
	}
	return out
}
