package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/phone-order-api/internal/models"
)

func TestFind(t *testing.T) {
	c := Default()

	tests := []struct {
		spoken string
		want   string
		found  bool
	}{
		{"Pizza Margherita", "Pizza Margherita", true},
		{"margherita", "Pizza Margherita", true},
		{"pepperoni", "Pepperoni Pizza", true},
		{"pizza", "Pizza Margherita", true},
		{"Coca-Cola", "Coca-Cola", true},
		{"coke", "Coca-Cola", true},
		{"garlic bread", "Garlic Bread", true},
		{"chicken wings", "Chicken Wings (10pc)", true},
		{"sushi", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.spoken, func(t *testing.T) {
			item, ok := c.Find(tt.spoken)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, item.Name)
		})
	}
}

func TestFilter(t *testing.T) {
	c := Default()

	drinks := c.Filter("Drinks")
	require.Len(t, drinks, 4)
	assert.Equal(t, "Coca-Cola", drinks[0].Name)

	assert.Len(t, c.Filter("burgers"), 18)
	assert.Len(t, c.Filter(""), 18)
}

func TestFormatText(t *testing.T) {
	items := []Item{
		{Key: "tiramisu", Name: "Tiramisu", Price: models.NewMoney(7.99), Category: "dessert"},
		{Key: "coke", Name: "Coca-Cola", Price: models.NewMoney(2.99), Category: "drinks"},
		{Key: "iced_tea", Name: "Iced Tea", Price: models.NewMoney(2.49), Category: "drinks"},
	}

	assert.Equal(t, "\nDessert: Tiramisu for $7.99.\nDrinks: Coca-Cola for $2.99, Iced Tea for $2.49.", FormatText(items))
}
