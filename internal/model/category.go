package model

import "strings"

// Category is the closed set of spend categories used across extraction and
// analytics. The extraction prompt instructs models to emit exactly these
// values; ParseCategory folds everything else onto the set.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryShopping      Category = "Shopping"
	CategoryUtilities     Category = "Utilities"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health"
	CategoryTravel        Category = "Travel"
	CategoryOther         Category = "Other"
)

// Categories lists all valid categories in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryHealth,
	CategoryTravel,
	CategoryOther,
}

// categoryAliases maps common spellings produced by statements and models
// onto the canonical set.
var categoryAliases = map[string]Category{
	"food":             CategoryFood,
	"dining":           CategoryFood,
	"groceries":        CategoryFood,
	"restaurants":      CategoryFood,
	"transport":        CategoryTransport,
	"transportation":   CategoryTransport,
	"travel transport": CategoryTransport,
	"shopping":         CategoryShopping,
	"retail":           CategoryShopping,
	"utilities":        CategoryUtilities,
	"bills":            CategoryUtilities,
	"entertainment":    CategoryEntertainment,
	"subscriptions":    CategoryEntertainment,
	"health":           CategoryHealth,
	"healthcare":       CategoryHealth,
	"medical":          CategoryHealth,
	"travel":           CategoryTravel,
	"other":            CategoryOther,
	"misc":             CategoryOther,
	"uncategorized":    CategoryOther,
}

// ParseCategory canonicalizes a free-text category string. Unknown values
// map to CategoryOther rather than failing; the data layer never rejects a
// record over its category.
func ParseCategory(s string) Category {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	return CategoryOther
}

// Valid reports whether c is a member of the canonical set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
