// Package menu holds the restaurant catalog and resolves spoken item names against it.
package menu

import (
	"fmt"
	"strings"

	"github.com/vaidashi/phone-order-api/internal/models"
)

// Item is a catalog entry
type Item struct {
	Key      string       `json:"id"`
	Name     string       `json:"name"`
	Price    models.Money `json:"price"`
	Category string       `json:"category"`
}

// Catalog is an ordered list of menu items. Order matters: the first fuzzy match wins.
type Catalog struct {
	items []Item
}

// NewCatalog creates a catalog from items in display order
func NewCatalog(items []Item) *Catalog {
	return &Catalog{items: items}
}

// Default returns the house menu
func Default() *Catalog {
	return NewCatalog([]Item{
		{Key: "pizza_margherita", Name: "Pizza Margherita", Price: 1499, Category: "pizza"},
		{Key: "pizza_pepperoni", Name: "Pepperoni Pizza", Price: 1699, Category: "pizza"},
		{Key: "pizza_veggie", Name: "Veggie Supreme Pizza", Price: 1599, Category: "pizza"},
		{Key: "pizza_hawaiian", Name: "Hawaiian Pizza", Price: 1699, Category: "pizza"},
		{Key: "pasta_carbonara", Name: "Pasta Carbonara", Price: 1399, Category: "pasta"},
		{Key: "pasta_bolognese", Name: "Pasta Bolognese", Price: 1299, Category: "pasta"},
		{Key: "pasta_alfredo", Name: "Chicken Alfredo", Price: 1499, Category: "pasta"},
		{Key: "caesar_salad", Name: "Caesar Salad", Price: 899, Category: "salad"},
		{Key: "garden_salad", Name: "Garden Salad", Price: 799, Category: "salad"},
		{Key: "garlic_bread", Name: "Garlic Bread", Price: 599, Category: "sides"},
		{Key: "mozzarella_sticks", Name: "Mozzarella Sticks", Price: 799, Category: "sides"},
		{Key: "chicken_wings", Name: "Chicken Wings (10pc)", Price: 1299, Category: "sides"},
		{Key: "tiramisu", Name: "Tiramisu", Price: 799, Category: "dessert"},
		{Key: "cheesecake", Name: "New York Cheesecake", Price: 699, Category: "dessert"},
		{Key: "coke", Name: "Coca-Cola", Price: 299, Category: "drinks"},
		{Key: "sprite", Name: "Sprite", Price: 299, Category: "drinks"},
		{Key: "water", Name: "Bottled Water", Price: 199, Category: "drinks"},
		{Key: "iced_tea", Name: "Iced Tea", Price: 249, Category: "drinks"},
	})
}

// Items returns the catalog in display order
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Filter returns the items of a category. An unknown or empty category returns the full menu.
func (c *Catalog) Filter(category string) []Item {
	category = strings.ToLower(strings.TrimSpace(category))

	if category == "" || category == "all" {
		return c.Items()
	}

	var out []Item
	for _, item := range c.items {
		if item.Category == category {
			out = append(out, item)
		}
	}

	if len(out) == 0 {
		return c.Items()
	}
	return out
}

// Find resolves a spoken item name. The name is lowercased with spaces turned into
// underscores and matches when it contains or is contained in a key, or when the
// lowercased name appears in an item's display name.
func (c *Catalog) Find(name string) (Item, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return Item{}, false
	}
	normalized := strings.ReplaceAll(lower, " ", "_")

	for _, item := range c.items {
		if strings.Contains(item.Key, normalized) ||
			strings.Contains(normalized, item.Key) ||
			strings.Contains(strings.ToLower(item.Name), lower) {
			return item, true
		}
	}
	return Item{}, false
}

// FormatText renders items grouped by category in catalog order,
// one "\n<Category>: Name for $x.xx, ..." line per category.
func FormatText(items []Item) string {
	var order []string
	grouped := make(map[string][]string)

	for _, item := range items {
		if _, ok := grouped[item.Category]; !ok {
			order = append(order, item.Category)
		}
		grouped[item.Category] = append(grouped[item.Category], fmt.Sprintf("%s for %s", item.Name, item.Price))
	}

	var b strings.Builder
	for _, category := range order {
		fmt.Fprintf(&b, "\n%s: %s.", titleCase(category), strings.Join(grouped[category], ", "))
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
