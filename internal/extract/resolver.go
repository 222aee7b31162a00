package extract

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"ozonscout/internal/model"
)

// ErrIdentityMissing marks an item whose SKU could not be derived from any
// source. The item must be discarded and counted, never silently dropped.
var ErrIdentityMissing = errors.New("extract: no sku derivable from source")

var (
	skuFromURLRe = regexp.MustCompile(`-(\d{5,})(?:/|\?|$)`)
	productIDRe  = regexp.MustCompile(`/product/(\d{5,})`)
	stockLeftRe  = regexp.MustCompile(`[Оо]сталось\s+(\d+)`)
	dateRe       = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	measureRe    = regexp.MustCompile(`([\d\s\x{00a0}]+(?:[.,]\d+)?)\s*([а-яa-z]+)?`)
)

// Conversion tables for unit normalization. Lengths canonicalize to
// centimeters, masses to grams.
var (
	lengthFactors = map[string]float64{
		"мм": 0.1, "mm": 0.1,
		"см": 1, "cm": 1,
		"м": 100, "m": 100,
	}
	massFactors = map[string]float64{
		"г": 1, "g": 1,
		"кг": 1000, "kg": 1000,
	}
)

// parseNumber parses a locale-tolerant numeric token: group separators may be
// spaces or non-breaking spaces, the decimal separator a comma or a dot.
func parseNumber(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u2009':
			return -1
		case ',':
			return '.'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseMeasure splits a free-text measurement into value and unit token and
// converts through the given factor table. Untagged values pass through as the
// canonical unit.
func parseMeasure(s string, factors map[string]float64) (float64, bool) {
	m := measureRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, false
	}
	v, ok := parseNumber(m[1])
	if !ok {
		return 0, false
	}
	if unit := m[2]; unit != "" {
		f, known := factors[unit]
		if !known {
			return 0, false
		}
		v *= f
	}
	return v, true
}

// ParseLengthCm normalizes a length token ("1700 мм", "170 см", "1.7 м") to
// centimeters.
func ParseLengthCm(s string) (float64, bool) { return parseMeasure(s, lengthFactors) }

// ParseMassG normalizes a mass token ("2 кг", "2000 г") to grams.
func ParseMassG(s string) (float64, bool) { return parseMeasure(s, massFactors) }

// SKUFromURL pulls the marketplace SKU out of a product URL. Ozon product
// slugs end in the numeric SKU: /product/nozh-kuhonnyy-123456789/.
func SKUFromURL(u string) string {
	if m := skuFromURLRe.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	if m := productIDRe.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}

// widgetRule binds one canonical concern to the widget keys that may carry it.
// Rules run in order; within a rule the first matching widget that yields data
// wins, so later (lower-fidelity) candidates never overwrite earlier ones.
type widgetRule struct {
	keyPart string
	apply   func(v any, rec *model.ProductRecord) bool
}

var widgetRules = []widgetRule{
	{"webProductHeading", func(v any, rec *model.ProductRecord) bool {
		if rec.Title != "" {
			return false
		}
		rec.Title = getString(v, "title")
		return rec.Title != ""
	}},
	{"webGallery", func(v any, rec *model.ProductRecord) bool {
		if rec.ImageURL != "" {
			return false
		}
		if s := getString(v, "coverImage"); s != "" {
			rec.ImageURL = s
			return true
		}
		if imgs, ok := getValue(v, "images").([]any); ok && len(imgs) > 0 {
			rec.ImageURL = getString(imgs[0], "src")
		}
		return rec.ImageURL != ""
	}},
	{"webPrice", applyPrice},
	{"webSale", applyPrice},
	{"webReviewProductScore", func(v any, rec *model.ProductRecord) bool {
		applied := false
		if rec.Rating == 0 {
			if f, ok := getNumber(v, "totalScore", "score"); ok && f > 0 {
				rec.Rating = f
				applied = true
			}
		}
		if rec.ReviewCount == 0 {
			if f, ok := getNumber(v, "reviewsCount", "count", "totalCount"); ok && f > 0 {
				rec.ReviewCount = int(f)
				applied = true
			}
		}
		return applied
	}},
	{"webBrand", func(v any, rec *model.ProductRecord) bool {
		if rec.Brand != "" {
			return false
		}
		rec.Brand = getString(v, "name", "content")
		return rec.Brand != ""
	}},
	{"webCurrentSeller", func(v any, rec *model.ProductRecord) bool {
		if rec.SellerName != "" {
			return false
		}
		rec.SellerName = getString(v, "name", "sellerName")
		if rec.SellerName == "" {
			return false
		}
		if rec.SellerType == "" {
			rec.SellerType = ClassifySeller(rec.SellerName)
		}
		return true
	}},
	{"breadCrumbs", func(v any, rec *model.ProductRecord) bool {
		if rec.Category != "" {
			return false
		}
		rec.Category = joinBreadcrumbs(v)
		return rec.Category != ""
	}},
	{"webCharacteristics", applyCharacteristics},
	{"webShortCharacteristics", applyCharacteristics},
}

func applyPrice(v any, rec *model.ProductRecord) bool {
	applied := false
	if rec.Price == 0 {
		if f, ok := priceNumber(getString(v, "price")); ok {
			rec.Price = f
			applied = true
		}
	}
	if rec.OriginalPrice == 0 {
		if f, ok := priceNumber(getString(v, "originalPrice", "cardPrice")); ok {
			rec.OriginalPrice = f
			applied = true
		}
	}
	if rec.DiscountPercent == 0 {
		if f, ok := getNumber(v, "discount", "discountPercent"); ok && f > 0 {
			rec.DiscountPercent = f
			applied = true
		}
	}
	return applied
}

// priceNumber strips the currency marker before numeric parsing.
func priceNumber(s string) (float64, bool) {
	s = strings.NewReplacer("₽", "", "¥", "").Replace(s)
	f, ok := parseNumber(s)
	return f, ok && f > 0
}

// ClassifySeller coarsely labels the seller from its display name.
func ClassifySeller(name string) string {
	low := strings.ToLower(name)
	if strings.Contains(low, "ozon") || strings.Contains(low, "озон") {
		return "Ozon"
	}
	return "third_party"
}

func joinBreadcrumbs(v any) string {
	crumbs, ok := getValue(v, "breadcrumbs").([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		if t := getString(c, "text", "title"); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " > ")
}

// applyCharacteristics walks the section-grouped characteristics payload and
// resolves dimensions, weight, volume and the listing creation date from its
// free-text key/value pairs.
func applyCharacteristics(v any, rec *model.ProductRecord) bool {
	return applyPairs(flattenPairs(v), rec)
}

func applyPairs(pairs []pair, rec *model.ProductRecord) bool {
	applied := false
	for _, p := range pairs {
		key := strings.ToLower(p.key)
		switch {
		case rec.LengthCm == 0 && strings.Contains(key, "длина"):
			rec.LengthCm, applied = measureOr(p.value, lengthFactors, applied)
		case rec.WidthCm == 0 && strings.Contains(key, "ширина"):
			rec.WidthCm, applied = measureOr(p.value, lengthFactors, applied)
		case rec.HeightCm == 0 && strings.Contains(key, "высота"):
			rec.HeightCm, applied = measureOr(p.value, lengthFactors, applied)
		case rec.WeightG == 0 && strings.Contains(key, "вес"):
			rec.WeightG, applied = measureOr(p.value, massFactors, applied)
		case rec.VolumeLiters == 0 && strings.Contains(key, "объем"):
			if f, ok := parseNumber(strings.TrimSuffix(strings.TrimSpace(p.value), "л")); ok {
				rec.VolumeLiters = f
				applied = true
			}
		case rec.CreationDate.IsZero() && (strings.Contains(key, "дата") || strings.Contains(key, "размещ")):
			if t, ok := parseRuDate(p.value); ok {
				rec.CreationDate = t
				applied = true
			}
		}
	}
	return applied
}

func measureOr(s string, factors map[string]float64, prev bool) (float64, bool) {
	if f, ok := parseMeasure(s, factors); ok {
		return f, true
	}
	return 0, prev
}

func parseRuDate(s string) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("02.01.2006", m[0])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type pair struct{ key, value string }

// flattenPairs recursively reduces a widget payload to key/value string pairs.
// It understands both named-node shapes ({name, values:[{text}]}) and plain
// "key: value" text lines; anything else is descended into.
func flattenPairs(v any) []pair {
	var out []pair
	switch t := v.(type) {
	case map[string]any:
		name := firstString(t, "name", "key", "title")
		if name != "" {
			if val := pairValue(t); val != "" {
				out = append(out, pair{name, val})
			}
		}
		for _, k := range sortedKeys(t) {
			out = append(out, flattenPairs(t[k])...)
		}
	case []any:
		for _, e := range t {
			out = append(out, flattenPairs(e)...)
		}
	case string:
		if k, val, ok := strings.Cut(t, ":"); ok && strings.TrimSpace(k) != "" {
			out = append(out, pair{strings.TrimSpace(k), strings.TrimSpace(val)})
		}
	}
	return out
}

func pairValue(m map[string]any) string {
	if s := firstString(m, "value", "text"); s != "" {
		return s
	}
	if vals, ok := m["values"].([]any); ok {
		parts := make([]string, 0, len(vals))
		for _, v := range vals {
			if s := getString(v, "text", "value"); s != "" {
				parts = append(parts, s)
			} else if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Resolve maps a decoded widget bag onto a partial product record. It is a
// pure function of its inputs; missing sources leave fields at their zero
// value. A record without a derivable SKU is a hard failure for the item.
func Resolve(pageURL string, widgets map[string]any) (model.ProductRecord, error) {
	var rec model.ProductRecord
	keys := sortedKeys(widgets)
	for _, rl := range widgetRules {
		for _, k := range keys {
			if !strings.Contains(k, rl.keyPart) {
				continue
			}
			if rl.apply(widgets[k], &rec) {
				break
			}
		}
	}
	if pageURL != "" {
		rec.ProductURL = pageURL
	}
	if rec.SKU = SKUFromURL(pageURL); rec.SKU == "" {
		for _, k := range keys {
			if !strings.Contains(k, "webStickyProducts") && k != "sku" {
				continue
			}
			if s := getString(widgets[k], "sku", "id"); s != "" {
				rec.SKU = s
				break
			}
			if s, ok := widgets[k].(string); ok && s != "" {
				rec.SKU = s
				break
			}
		}
	}
	if rec.SKU == "" {
		return rec, ErrIdentityMissing
	}
	return rec, nil
}

// Nested-value accessors. Widgets decode to map[string]any trees; these
// helpers keep rule bodies flat.

func getValue(v any, key string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func getString(v any, keys ...string) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return firstString(m, keys...)
}

func getNumber(v any, keys ...string) (float64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case string:
			if f, ok := parseNumber(n); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StockFromWidgets scans price/sale widgets for the remaining-stock phrase and
// cart widgets for a quantity limit. Returns nil when no stock signal exists.
func StockFromWidgets(widgets map[string]any) *int {
	for _, k := range sortedKeys(widgets) {
		v := widgets[k]
		if strings.Contains(k, "webPrice") || strings.Contains(k, "webSale") {
			if m := stockLeftRe.FindStringSubmatch(anyText(v)); m != nil {
				n, _ := strconv.Atoi(m[1])
				return &n
			}
		}
		if strings.Contains(strings.ToLower(k), "addtocart") {
			if f, ok := getNumber(v, "maxQuantity", "limit"); ok && f > 0 {
				n := int(f)
				return &n
			}
		}
		if strings.Contains(k, "webStatus") || strings.Contains(k, "webAvailability") {
			status := strings.ToLower(getString(v, "status", "state"))
			if strings.Contains(status, "out_of_stock") || strings.Contains(status, "unavailable") {
				n := 0
				return &n
			}
		}
	}
	return nil
}

// ReviewCountFromWidgets reads the review total from the score widget.
func ReviewCountFromWidgets(widgets map[string]any) *int {
	for _, k := range sortedKeys(widgets) {
		if !strings.Contains(k, "webReviewProductScore") {
			continue
		}
		if f, ok := getNumber(widgets[k], "reviewsCount", "count", "totalCount"); ok && f > 0 {
			n := int(f)
			return &n
		}
	}
	return nil
}

// anyText renders a decoded widget subtree as searchable text.
func anyText(v any) string {
	var b strings.Builder
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			b.WriteString(t)
			b.WriteByte(' ')
		case map[string]any:
			for _, k := range sortedKeys(t) {
				walk(t[k])
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		}
	}
	walk(v)
	return b.String()
}
