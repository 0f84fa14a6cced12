// Package extraction turns uploaded statement files into normalized
// transaction records, using local parsers first and hosted language models
// as a fallback.
package extraction

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cardlens/backend/internal/model"
)

// MerchantInfo contains normalized merchant information.
type MerchantInfo struct {
	Name       string
	Category   model.Category
	Confidence float64
}

// merchantMappings maps known merchant keywords to normalized names and categories.
var merchantMappings = map[string]MerchantInfo{
	// Grocery stores
	"woolworths":  {Name: "Woolworths", Category: model.CategoryFood, Confidence: 0.95},
	"coles":       {Name: "Coles", Category: model.CategoryFood, Confidence: 0.95},
	"aldi":        {Name: "Aldi", Category: model.CategoryFood, Confidence: 0.95},
	"costco":      {Name: "Costco", Category: model.CategoryFood, Confidence: 0.95},
	"iga":         {Name: "IGA", Category: model.CategoryFood, Confidence: 0.95},
	"whole foods": {Name: "Whole Foods", Category: model.CategoryFood, Confidence: 0.95},
	"trader joe":  {Name: "Trader Joe's", Category: model.CategoryFood, Confidence: 0.95},

	// Fast food & restaurants
	"mcdonalds":   {Name: "McDonald's", Category: model.CategoryFood, Confidence: 0.95},
	"mcdonald's":  {Name: "McDonald's", Category: model.CategoryFood, Confidence: 0.95},
	"starbucks":   {Name: "Starbucks", Category: model.CategoryFood, Confidence: 0.95},
	"subway":      {Name: "Subway", Category: model.CategoryFood, Confidence: 0.95},
	"kfc":         {Name: "KFC", Category: model.CategoryFood, Confidence: 0.95},
	"burger king": {Name: "Burger King", Category: model.CategoryFood, Confidence: 0.95},
	"dominos":     {Name: "Domino's", Category: model.CategoryFood, Confidence: 0.95},
	"pizza hut":   {Name: "Pizza Hut", Category: model.CategoryFood, Confidence: 0.95},

	// Food delivery
	"uber eats": {Name: "Uber Eats", Category: model.CategoryFood, Confidence: 0.95},
	"doordash":  {Name: "DoorDash", Category: model.CategoryFood, Confidence: 0.95},
	"deliveroo": {Name: "Deliveroo", Category: model.CategoryFood, Confidence: 0.95},
	"menulog":   {Name: "Menulog", Category: model.CategoryFood, Confidence: 0.95},
	"swiggy":    {Name: "Swiggy", Category: model.CategoryFood, Confidence: 0.95},
	"zomato":    {Name: "Zomato", Category: model.CategoryFood, Confidence: 0.95},

	// Transportation
	"uber":    {Name: "Uber", Category: model.CategoryTransport, Confidence: 0.95},
	"lyft":    {Name: "Lyft", Category: model.CategoryTransport, Confidence: 0.95},
	"ola":     {Name: "Ola", Category: model.CategoryTransport, Confidence: 0.95},
	"shell":   {Name: "Shell", Category: model.CategoryTransport, Confidence: 0.95},
	"bp":      {Name: "BP", Category: model.CategoryTransport, Confidence: 0.95},
	"caltex":  {Name: "Caltex", Category: model.CategoryTransport, Confidence: 0.95},
	"chevron": {Name: "Chevron", Category: model.CategoryTransport, Confidence: 0.95},
	"opal":    {Name: "Opal Card", Category: model.CategoryTransport, Confidence: 0.95},
	"myki":    {Name: "Myki", Category: model.CategoryTransport, Confidence: 0.95},

	// Entertainment
	"netflix":         {Name: "Netflix", Category: model.CategoryEntertainment, Confidence: 0.95},
	"spotify":         {Name: "Spotify", Category: model.CategoryEntertainment, Confidence: 0.95},
	"disney+":         {Name: "Disney+", Category: model.CategoryEntertainment, Confidence: 0.95},
	"hulu":            {Name: "Hulu", Category: model.CategoryEntertainment, Confidence: 0.95},
	"amazon prime":    {Name: "Amazon Prime", Category: model.CategoryEntertainment, Confidence: 0.95},
	"youtube premium": {Name: "YouTube Premium", Category: model.CategoryEntertainment, Confidence: 0.95},

	// Shopping
	"amazon":   {Name: "Amazon", Category: model.CategoryShopping, Confidence: 0.95},
	"ebay":     {Name: "eBay", Category: model.CategoryShopping, Confidence: 0.95},
	"target":   {Name: "Target", Category: model.CategoryShopping, Confidence: 0.95},
	"walmart":  {Name: "Walmart", Category: model.CategoryShopping, Confidence: 0.95},
	"ikea":     {Name: "IKEA", Category: model.CategoryShopping, Confidence: 0.95},
	"flipkart": {Name: "Flipkart", Category: model.CategoryShopping, Confidence: 0.95},
	"myntra":   {Name: "Myntra", Category: model.CategoryShopping, Confidence: 0.95},

	// Health
	"chemist warehouse": {Name: "Chemist Warehouse", Category: model.CategoryHealth, Confidence: 0.95},
	"priceline":         {Name: "Priceline Pharmacy", Category: model.CategoryHealth, Confidence: 0.95},
	"cvs":               {Name: "CVS Pharmacy", Category: model.CategoryHealth, Confidence: 0.95},
	"walgreens":         {Name: "Walgreens", Category: model.CategoryHealth, Confidence: 0.95},
	"apollo":            {Name: "Apollo Pharmacy", Category: model.CategoryHealth, Confidence: 0.95},

	// Utilities
	"telstra":  {Name: "Telstra", Category: model.CategoryUtilities, Confidence: 0.95},
	"optus":    {Name: "Optus", Category: model.CategoryUtilities, Confidence: 0.95},
	"vodafone": {Name: "Vodafone", Category: model.CategoryUtilities, Confidence: 0.95},
	"verizon":  {Name: "Verizon", Category: model.CategoryUtilities, Confidence: 0.95},
	"at&t":     {Name: "AT&T", Category: model.CategoryUtilities, Confidence: 0.95},
	"airtel":   {Name: "Airtel", Category: model.CategoryUtilities, Confidence: 0.95},
	"jio":      {Name: "Jio", Category: model.CategoryUtilities, Confidence: 0.95},

	// Travel
	"airbnb":      {Name: "Airbnb", Category: model.CategoryTravel, Confidence: 0.95},
	"booking.com": {Name: "Booking.com", Category: model.CategoryTravel, Confidence: 0.95},
	"expedia":     {Name: "Expedia", Category: model.CategoryTravel, Confidence: 0.95},
	"qantas":      {Name: "Qantas", Category: model.CategoryTravel, Confidence: 0.95},
	"makemytrip":  {Name: "MakeMyTrip", Category: model.CategoryTravel, Confidence: 0.95},
	"marriott":    {Name: "Marriott", Category: model.CategoryTravel, Confidence: 0.95},
	"hilton":      {Name: "Hilton", Category: model.CategoryTravel, Confidence: 0.95},
}

// categoryKeywords maps generic keywords to categories for fallback.
var categoryKeywords = map[string]model.Category{
	"restaurant": model.CategoryFood,
	"cafe":       model.CategoryFood,
	"coffee":     model.CategoryFood,
	"grocer":     model.CategoryFood,
	"market":     model.CategoryFood,
	"bakery":     model.CategoryFood,
	"pizza":      model.CategoryFood,
	"sushi":      model.CategoryFood,

	"fuel":    model.CategoryTransport,
	"petrol":  model.CategoryTransport,
	"parking": model.CategoryTransport,
	"toll":    model.CategoryTransport,
	"taxi":    model.CategoryTransport,
	"train":   model.CategoryTransport,
	"metro":   model.CategoryTransport,

	"cinema":  model.CategoryEntertainment,
	"movie":   model.CategoryEntertainment,
	"theatre": model.CategoryEntertainment,
	"concert": model.CategoryEntertainment,
	"gaming":  model.CategoryEntertainment,

	"store":       model.CategoryShopping,
	"shop":        model.CategoryShopping,
	"electronics": model.CategoryShopping,
	"clothing":    model.CategoryShopping,

	"pharmacy": model.CategoryHealth,
	"chemist":  model.CategoryHealth,
	"doctor":   model.CategoryHealth,
	"medical":  model.CategoryHealth,
	"dental":   model.CategoryHealth,
	"hospital": model.CategoryHealth,
	"gym":      model.CategoryHealth,

	"electric":  model.CategoryUtilities,
	"internet":  model.CategoryUtilities,
	"phone":     model.CategoryUtilities,
	"mobile":    model.CategoryUtilities,
	"broadband": model.CategoryUtilities,
	"recharge":  model.CategoryUtilities,

	"hotel":   model.CategoryTravel,
	"flight":  model.CategoryTravel,
	"airline": model.CategoryTravel,
	"airport": model.CategoryTravel,
}

var (
	// Patterns for cleaning merchant names
	prefixPattern = regexp.MustCompile(`(?i)^(pos |eftpos |visa |mastercard |amex |paypal \*|sq \*)`)
	suffixPattern = regexp.MustCompile(`(?i)\s+(pty|ltd|inc|corp|llc|au|us|uk|nz|sg|in)\.?$`)
	longNumbers   = regexp.MustCompile(`\d{6,}`)
	specialChars  = regexp.MustCompile(`[*#]+`)
)

// NormalizeMerchant normalizes a merchant name and determines its category.
func NormalizeMerchant(rawMerchant string) MerchantInfo {
	lower := strings.ToLower(strings.TrimSpace(rawMerchant))

	cleaned := prefixPattern.ReplaceAllString(lower, "")
	cleaned = suffixPattern.ReplaceAllString(cleaned, "")
	cleaned = longNumbers.ReplaceAllString(cleaned, "")
	cleaned = specialChars.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return MerchantInfo{Name: formatMerchantName(rawMerchant), Category: model.CategoryOther, Confidence: 0.3}
	}

	// Check for direct mapping first
	for key, info := range merchantMappings {
		if strings.Contains(cleaned, key) || strings.Contains(key, cleaned) {
			return info
		}
	}

	// Check for partial word matches
	for key, info := range merchantMappings {
		words := strings.Fields(key)
		for _, word := range words {
			if len(word) > 3 && strings.Contains(cleaned, word) {
				return MerchantInfo{
					Name:       info.Name,
					Category:   info.Category,
					Confidence: 0.8, // lower confidence for partial match
				}
			}
		}
	}

	// Fall back to keyword-based categorization
	for keyword, category := range categoryKeywords {
		if strings.Contains(cleaned, keyword) {
			return MerchantInfo{
				Name:       formatMerchantName(rawMerchant),
				Category:   category,
				Confidence: 0.6,
			}
		}
	}

	return MerchantInfo{
		Name:       formatMerchantName(rawMerchant),
		Category:   model.CategoryOther,
		Confidence: 0.3,
	}
}

// formatMerchantName formats a raw merchant name for display.
func formatMerchantName(raw string) string {
	cleaned := prefixPattern.ReplaceAllString(raw, "")
	cleaned = suffixPattern.ReplaceAllString(cleaned, "")
	cleaned = longNumbers.ReplaceAllString(cleaned, "")
	cleaned = specialChars.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	// Title case each word
	caser := cases.Title(language.English)
	words := strings.Fields(cleaned)
	for i, word := range words {
		if len(word) > 2 {
			words[i] = caser.String(strings.ToLower(word))
		} else {
			words[i] = strings.ToUpper(word)
		}
	}

	result := strings.Join(words, " ")
	if len(result) > 50 {
		result = result[:50]
	}

	return result
}
