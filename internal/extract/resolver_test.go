package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLengthCm(t *testing.T) {
	testCases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1700 мм", 170, true},
		{"1700мм", 170, true},
		{"170 см", 170, true},
		{"1.7 м", 170, true},
		{"1,7 м", 170, true},
		{"170", 170, true},
		{"1 700 мм", 170, true},
		{"", 0, false},
		{"170 parsec", 0, false},
	}
	for _, tc := range testCases {
		got, ok := ParseLengthCm(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		require.InDelta(t, tc.want, got, 1e-9, "input %q", tc.in)
	}
}

func TestParseMassG(t *testing.T) {
	testCases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"2 кг", 2000, true},
		{"2кг", 2000, true},
		{"2000 г", 2000, true},
		{"2000", 2000, true},
		{"0,5 кг", 500, true},
		{"тяжёлый", 0, false},
	}
	for _, tc := range testCases {
		got, ok := ParseMassG(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		require.InDelta(t, tc.want, got, 1e-9, "input %q", tc.in)
	}
}

func TestSKUFromURL(t *testing.T) {
	testCases := []struct {
		url  string
		want string
	}{
		{"https://www.ozon.ru/product/nozh-kuhonnyy-123456789/", "123456789"},
		{"/product/stol-skladnoy-98765432/?from=search", "98765432"},
		{"https://www.ozon.ru/product/987654321", "987654321"},
		{"https://www.ozon.ru/category/mebel/", ""},
		{"/product/tovar-1234/", ""}, // too few digits to be a sku
	}
	for _, tc := range testCases {
		require.Equal(t, tc.want, SKUFromURL(tc.url), "url %q", tc.url)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	body := []byte(`{
		"widgetStates": {
			"webPrice-123": "{\"price\":\"1 990 ₽\",\"originalPrice\":\"2 500 ₽\"}",
			"webBrand-456": "{\"name\":\"Samura\"}",
			"userAdultModal-1": "not json at all",
			"trackingPixel-2": "\"\""
		}
	}`)
	widgets, err := DecodeEnvelope(body)
	require.NoError(t, err)

	// Malformed nested values are skipped, never fatal.
	require.Contains(t, widgets, "webPrice-123")
	require.Contains(t, widgets, "webBrand-456")
	require.NotContains(t, widgets, "userAdultModal-1")

	rec, err := Resolve("https://www.ozon.ru/product/nozh-123456789/", widgets)
	require.NoError(t, err)
	require.Equal(t, "123456789", rec.SKU)
	require.Equal(t, 1990.0, rec.Price)
	require.Equal(t, 2500.0, rec.OriginalPrice)
	require.Equal(t, "Samura", rec.Brand)
}

func TestDecodeEnvelopeMissingSection(t *testing.T) {
	widgets, err := DecodeEnvelope([]byte(`{"layout":[]}`))
	require.NoError(t, err)
	require.Empty(t, widgets)

	_, err = DecodeEnvelope([]byte(`{broken`))
	require.Error(t, err)
}

func TestResolveDetailWidgets(t *testing.T) {
	widgets := map[string]any{
		"webProductHeading-1": map[string]any{"title": "Нож кухонный"},
		"webGallery-2":        map[string]any{"coverImage": "https://cdn.ozon.ru/img.jpg"},
		"webReviewProductScore-3": map[string]any{
			"totalScore":   4.8,
			"reviewsCount": 1523.0,
		},
		"webCurrentSeller-4": map[string]any{"name": "Samura Official"},
		"breadCrumbs-5": map[string]any{
			"breadcrumbs": []any{
				map[string]any{"text": "Дом и сад"},
				map[string]any{"text": "Посуда"},
				map[string]any{"text": "Ножи"},
			},
		},
		"webCharacteristics-6": map[string]any{
			"characteristics": []any{
				map[string]any{
					"title": "Размеры",
					"short": []any{
						map[string]any{"name": "Длина", "values": []any{map[string]any{"text": "330 мм"}}},
						map[string]any{"name": "Ширина", "values": []any{map[string]any{"text": "4 см"}}},
						map[string]any{"name": "Вес товара", "values": []any{map[string]any{"text": "0,2 кг"}}},
						map[string]any{"name": "Дата размещения", "values": []any{map[string]any{"text": "15.03.2024"}}},
					},
				},
			},
		},
	}

	rec, err := Resolve("https://www.ozon.ru/product/nozh-kuhonnyy-123456789/", widgets)
	require.NoError(t, err)

	require.Equal(t, "123456789", rec.SKU)
	require.Equal(t, "Нож кухонный", rec.Title)
	require.Equal(t, "https://cdn.ozon.ru/img.jpg", rec.ImageURL)
	require.Equal(t, 4.8, rec.Rating)
	require.Equal(t, 1523, rec.ReviewCount)
	require.Equal(t, "Samura Official", rec.SellerName)
	require.Equal(t, "third_party", rec.SellerType)
	require.Equal(t, "Дом и сад > Посуда > Ножи", rec.Category)
	require.InDelta(t, 33.0, rec.LengthCm, 1e-9)
	require.InDelta(t, 4.0, rec.WidthCm, 1e-9)
	require.InDelta(t, 200.0, rec.WeightG, 1e-9)
	require.Equal(t, 2024, rec.CreationDate.Year())
}

func TestResolveIdentityMissing(t *testing.T) {
	widgets := map[string]any{
		"webProductHeading-1": map[string]any{"title": "Без адреса"},
	}
	rec, err := Resolve("https://www.ozon.ru/search/?text=nozh", widgets)
	require.ErrorIs(t, err, ErrIdentityMissing)
	// Partial data is still resolved so callers can count what was lost.
	require.Equal(t, "Без адреса", rec.Title)
}

func TestStockFromWidgets(t *testing.T) {
	widgets := map[string]any{
		"webPrice-1": map[string]any{"price": "990 ₽", "stockText": "Осталось 7 шт"},
	}
	got := StockFromWidgets(widgets)
	require.NotNil(t, got)
	require.Equal(t, 7, *got)

	widgets = map[string]any{
		"webAddToCart-1": map[string]any{"maxQuantity": 42.0},
	}
	got = StockFromWidgets(widgets)
	require.NotNil(t, got)
	require.Equal(t, 42, *got)

	widgets = map[string]any{
		"webAvailability-1": map[string]any{"status": "OUT_OF_STOCK"},
	}
	got = StockFromWidgets(widgets)
	require.NotNil(t, got)
	require.Equal(t, 0, *got)

	require.Nil(t, StockFromWidgets(map[string]any{"webGallery-1": map[string]any{}}))
}
