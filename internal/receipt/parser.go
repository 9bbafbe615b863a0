// Package receipt turns already-extracted receipt text into purchase line
// items. Image OCR happens upstream.
package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

// DefaultSize is assumed when a line names no size.
const DefaultSize = "Medium"

// supplierSearchLines bounds how far down the header the store name is looked for.
const supplierSearchLines = 5

var (
	foodKeywords = []string{
		"rat", "rats", "mouse", "mice", "cricket", "crickets",
		"dubia", "roach", "roaches", "mealworm", "mealworms",
		"superworm", "superworms", "hornworm", "hornworms",
		"waxworm", "waxworms", "pinkie", "pinkies", "fuzzy", "fuzzies",
		"hopper", "hoppers", "small", "medium", "large", "xl", "jumbo",
		"adult", "baby", "juvenile", "feeder",
	}

	sizeKeywords = []string{
		"small", "medium", "large", "xl", "extra large", "jumbo",
		"pinkie", "fuzzy", "hopper", "adult", "baby", "juvenile",
		"xs", "sm", "md", "lg",
	}

	quantityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`x\s*(\d+)`),
		regexp.MustCompile(`\((\d+)\)`),
		regexp.MustCompile(`qty:?\s*(\d+)`),
		regexp.MustCompile(`\b(\d+)\s*(?:pcs?|pieces?|count|ct)\b`),
	}
	bareNumber = regexp.MustCompile(`\b(\d+)\b`)
	price      = regexp.MustCompile(`\$\s*(\d+\.?\d*)`)

	numericDate  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}[/-]\d{1,2}[/-]\d{1,2}`),
		numericDate,
		regexp.MustCompile(`[A-Za-z]{3,9}\s+\d{1,2},?\s+\d{4}`),
	}
	dateLayouts = []string{
		"1/2/2006", "1-2-2006", "1/2/06", "1-2-06",
		"2006-1-2", "2006/1/2",
		"January 2, 2006", "Jan 2, 2006", "January 2 2006", "Jan 2 2006",
	}

	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`total:?\s*\$?\s*(\d+\.?\d*)`),
		regexp.MustCompile(`amount:?\s*\$?\s*(\d+\.?\d*)`),
		regexp.MustCompile(`grand\s+total:?\s*\$?\s*(\d+\.?\d*)`),
	}
)

// Item is one recognised purchase line.
type Item struct {
	domain.LineItem
	TotalCost *decimal.Decimal `json:"total_cost,omitempty"`
	RawLine   string           `json:"raw_line"`
}

// Receipt is the structured view of a receipt's text.
type Receipt struct {
	Supplier string           `json:"supplier,omitempty"`
	Date     *time.Time       `json:"date,omitempty"`
	RawDate  string           `json:"raw_date,omitempty"`
	Items    []Item           `json:"items"`
	Total    *decimal.Decimal `json:"total,omitempty"`
}

// LineItems returns the recognised lines ready for stocking, tagged with the
// receipt's supplier.
func (r *Receipt) LineItems() []domain.LineItem {
	items := make([]domain.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		li := it.LineItem
		if li.Supplier == "" {
			li.Supplier = r.Supplier
		}
		items = append(items, li)
	}
	return items
}

// Parse extracts supplier, date, food line items and the total from text.
func Parse(text string) *Receipt {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	r := &Receipt{
		Supplier: extractSupplier(lines),
		Items:    extractItems(lines),
		Total:    extractTotal(lines),
	}
	r.RawDate, r.Date = extractDate(lines)
	return r
}

func extractSupplier(lines []string) string {
	if len(lines) > supplierSearchLines {
		lines = lines[:supplierSearchLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || (line[0] >= '0' && line[0] <= '9') {
			continue
		}
		if numericDate.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// extractDate returns the first date-looking text that parses. When nothing
// parses, the first candidate is still returned as raw text.
func extractDate(lines []string) (string, *time.Time) {
	firstRaw := ""
	for _, line := range lines {
		for _, pattern := range datePatterns {
			raw := pattern.FindString(line)
			if raw == "" {
				continue
			}
			if firstRaw == "" {
				firstRaw = raw
			}
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, raw); err == nil {
					d := domain.DateOf(t)
					return raw, &d
				}
			}
		}
	}
	return firstRaw, nil
}

func extractItems(lines []string) []Item {
	var items []Item
	for _, line := range lines {
		if item, ok := parseItemLine(line); ok {
			items = append(items, item)
		}
	}
	return items
}

func parseItemLine(line string) (Item, bool) {
	lower := strings.ToLower(line)

	foodType := ""
	for _, kw := range foodKeywords {
		if strings.Contains(lower, kw) && !isSizeKeyword(kw) {
			foodType = capitalize(kw)
			break
		}
	}
	if foodType == "" {
		return Item{}, false
	}

	foodSize := DefaultSize
	for _, size := range sizeKeywords {
		if strings.Contains(lower, size) {
			foodSize = capitalize(size)
			break
		}
	}

	quantity := 1
	for _, pattern := range quantityPatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			quantity, _ = strconv.Atoi(m[1])
			break
		}
	}
	// without an explicit marker, the first plausible bare number is taken
	if quantity == 1 {
		for _, m := range bareNumber.FindAllStringSubmatch(line, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 1 && n <= 1000 {
				quantity = n
				break
			}
		}
	}
	if quantity < 1 {
		quantity = 1
	}

	item := Item{
		LineItem: domain.LineItem{FoodType: foodType, FoodSize: foodSize, Quantity: quantity},
		RawLine:  strings.TrimSpace(line),
	}

	var prices []decimal.Decimal
	for _, m := range price.FindAllStringSubmatch(line, -1) {
		if p, err := decimal.NewFromString(strings.TrimSuffix(m[1], ".")); err == nil {
			prices = append(prices, p)
		}
	}
	switch {
	case len(prices) >= 2:
		unit, total := prices[0], prices[len(prices)-1]
		item.CostPerUnit = &unit
		item.TotalCost = &total
	case len(prices) == 1:
		total := prices[0]
		unit := total.DivRound(decimal.NewFromInt(int64(quantity)), 4)
		item.CostPerUnit = &unit
		item.TotalCost = &total
	}

	return item, true
}

func extractTotal(lines []string) *decimal.Decimal {
	for i := len(lines) - 1; i >= 0; i-- {
		lower := strings.ToLower(lines[i])
		for _, pattern := range totalPatterns {
			m := pattern.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			if total, err := decimal.NewFromString(strings.TrimSuffix(m[1], ".")); err == nil {
				return &total
			}
		}
	}
	return nil
}

func isSizeKeyword(kw string) bool {
	for _, s := range sizeKeywords {
		if s == kw {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
