package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gamedex/catalog/internal/schema"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"AUD": "$",
	"NZD": "$",
	"HKD": "$",
	"TWD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"KRW": "₩",
}

// zeroDecimalCurrencies have no minor unit; amounts render without decimals.
var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {},
	"KRW": {},
}

var priceAmountRx = regexp.MustCompile(`[0-9]+(?:[.,][0-9]+)*`)

// PriceFromMinorUnits builds a Price from an already-integer amount, e.g.
// Steam's price_overview cents.
func PriceFromMinorUnits(minor int64, currency string) schema.Price {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	price := schema.Price{
		MinorUnits: minor,
		Currency:   currency,
		Free:       minor == 0,
		Known:      true,
	}
	price.Display = FormatPrice(price)
	return price
}

// FreePrice returns the sentinel zero price for free listings.
func FreePrice(currency string) schema.Price {
	return PriceFromMinorUnits(0, currency)
}

// UnknownPrice marks a listing whose price could not be determined. It is
// never fabricated into a zero amount.
func UnknownPrice() schema.Price {
	return schema.Price{Display: "Unavailable"}
}

// ParsePrice interprets heterogeneous source price values: integer cents,
// floating amounts, and display strings such as "$69.99", "69,99" or "Free".
func ParsePrice(value any, currency string) schema.Price {
	switch v := value.(type) {
	case nil:
		return UnknownPrice()
	case int:
		return PriceFromMinorUnits(int64(v), currency)
	case int64:
		return PriceFromMinorUnits(v, currency)
	case float64:
		// JSON numbers arrive as float64; whole values are cents, fractional
		// values are major-unit amounts.
		if v == float64(int64(v)) {
			return PriceFromMinorUnits(int64(v), currency)
		}
		return priceFromMajor(decimal.NewFromFloat(v), currency)
	case string:
		return parsePriceString(v, currency)
	default:
		return UnknownPrice()
	}
}

func parsePriceString(value, currency string) schema.Price {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return UnknownPrice()
	}
	lower := strings.ToLower(trimmed)
	if lower == "free" || lower == "free to play" {
		return FreePrice(currency)
	}
	if lower == "unavailable" || lower == "announced" {
		return UnknownPrice()
	}
	match := priceAmountRx.FindString(trimmed)
	if match == "" {
		return UnknownPrice()
	}
	amount, err := decimal.NewFromString(normalizeAmount(match))
	if err != nil {
		return UnknownPrice()
	}
	return priceFromMajor(amount, currency)
}

// normalizeAmount disambiguates decimal and grouping separators across
// locale formats ("1,399.00", "69,99", "1.399,00").
func normalizeAmount(raw string) string {
	comma := strings.LastIndex(raw, ",")
	dot := strings.LastIndex(raw, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if dot > comma {
			return strings.ReplaceAll(raw, ",", "")
		}
		stripped := strings.ReplaceAll(raw, ".", "")
		return strings.Replace(stripped, ",", ".", 1)
	case comma >= 0:
		if strings.Count(raw, ",") == 1 && len(raw)-comma <= 3 {
			return raw[:comma] + "." + raw[comma+1:]
		}
		return strings.ReplaceAll(raw, ",", "")
	case dot >= 0:
		if strings.Count(raw, ".") == 1 && len(raw)-dot <= 3 {
			return raw
		}
		return strings.ReplaceAll(raw, ".", "")
	default:
		return raw
	}
}

func priceFromMajor(amount decimal.Decimal, currency string) schema.Price {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	scale := int32(2)
	if _, zero := zeroDecimalCurrencies[currency]; zero {
		scale = 0
	}
	minor := amount.Shift(scale).Round(0).IntPart()
	return PriceFromMinorUnits(minor, currency)
}

// FormatPrice renders the canonical display string for a price, e.g. "$69.99"
// or "Free".
func FormatPrice(price schema.Price) string {
	if !price.Known {
		return "Unavailable"
	}
	if price.Free {
		return "Free"
	}
	symbol, ok := currencySymbols[price.Currency]
	if _, zero := zeroDecimalCurrencies[price.Currency]; zero {
		if !ok {
			return fmt.Sprintf("%s %d", price.Currency, price.MinorUnits)
		}
		return fmt.Sprintf("%s%d", symbol, price.MinorUnits)
	}
	major := decimal.New(price.MinorUnits, -2)
	if !ok {
		return strings.TrimSpace(fmt.Sprintf("%s %s", price.Currency, major.StringFixed(2)))
	}
	return symbol + major.StringFixed(2)
}
