package model

import (
	"reflect"
	"time"

	"dario.cat/mergo"
)

// ProductRecord is the canonical product row assembled from the list pass,
// the detail pass and the DOM fallback. Identity is the marketplace SKU.
type ProductRecord struct {
	SKU              string    `json:"sku"`
	Title            string    `json:"title"`
	ImageURL         string    `json:"image_url"`
	ProductURL       string    `json:"product_url"`
	Price            float64   `json:"price"`
	OriginalPrice    float64   `json:"original_price"`
	DiscountPercent  float64   `json:"discount_percent"`
	Category         string    `json:"category"`
	Brand            string    `json:"brand"`
	Rating           float64   `json:"rating"`
	ReviewCount      int       `json:"review_count"`
	SellerType       string    `json:"seller_type"`
	SellerName       string    `json:"seller_name"`
	CreationDate     time.Time `json:"creation_date"`
	FollowerCount    int       `json:"follower_count"`
	FollowerMinPrice float64   `json:"follower_min_price"`
	FollowerMinURL   string    `json:"follower_min_url"`
	LengthCm         float64   `json:"length_cm"`
	WidthCm          float64   `json:"width_cm"`
	HeightCm         float64   `json:"height_cm"`
	WeightG          float64   `json:"weight_g"`
	VolumeLiters     float64   `json:"volume_liters"`
	DeliveryInfo     string    `json:"delivery_info"`
	Keyword          string    `json:"keyword"`

	// Derived from the snapshot series, never observed directly.
	WeeklySales         int        `json:"weekly_sales"`
	MonthlySales        int        `json:"monthly_sales"`
	SalesEstimateMethod Method     `json:"sales_estimate_method"`
	SalesConfidence     Confidence `json:"sales_confidence"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// IsEmpty reports whether no observed field carries data.
func (p ProductRecord) IsEmpty() bool {
	return p.SKU == "" && p.Title == "" && p.Price == 0 && p.ReviewCount == 0
}

// fillZeroTime lets mergo treat time.Time as a scalar: a zero timestamp is
// filled from the other side, a populated one is kept.
type fillZeroTime struct{}

func (fillZeroTime) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf(time.Time{}) {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if dst.CanSet() && dst.Interface().(time.Time).IsZero() {
			dst.Set(src)
		}
		return nil
	}
}

// Merge unions two partial records. Fields already populated in primary are
// kept; empty ones are filled from secondary. Calling with the higher-fidelity
// partial as primary makes the union independent of arrival order.
func Merge(primary, secondary ProductRecord) ProductRecord {
	out := primary
	// mergo only fills zero-valued fields, which is exactly the left bias.
	_ = mergo.Merge(&out, secondary, mergo.WithTransformers(fillZeroTime{}))
	return out
}
