package repository

import (
	"context"
	"database/sql"
	"errors"

	"ozonscout/internal/estimate"
	"ozonscout/internal/model"
)

// ProductRepository persists canonical product records keyed by SKU. Save
// merges with the stored row using the same left-biased rule as the
// collection pipeline, so repeated passes only improve a record.
type ProductRepository struct {
	DB *sql.DB
}

const productColumns = `
	sku, title, image_url, product_url, price, original_price, discount_percent,
	category, brand, rating, review_count, seller_type, seller_name, creation_date,
	follower_count, follower_min_price, follower_min_url,
	length_cm, width_cm, height_cm, weight_g, volume_liters,
	delivery_info, keyword,
	weekly_sales, monthly_sales, sales_estimate_method, sales_confidence,
	scraped_at`

func (r *ProductRepository) Save(ctx context.Context, p model.ProductRecord) error {
	existing, err := r.Get(ctx, p.SKU)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err == nil {
		// Incoming data is fresher: it wins where populated, the stored
		// row fills the rest.
		p = model.Merge(p, existing)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		ON CONFLICT (sku) DO UPDATE SET
			title = EXCLUDED.title,
			image_url = EXCLUDED.image_url,
			product_url = EXCLUDED.product_url,
			price = EXCLUDED.price,
			original_price = EXCLUDED.original_price,
			discount_percent = EXCLUDED.discount_percent,
			category = EXCLUDED.category,
			brand = EXCLUDED.brand,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			seller_type = EXCLUDED.seller_type,
			seller_name = EXCLUDED.seller_name,
			creation_date = EXCLUDED.creation_date,
			follower_count = EXCLUDED.follower_count,
			follower_min_price = EXCLUDED.follower_min_price,
			follower_min_url = EXCLUDED.follower_min_url,
			length_cm = EXCLUDED.length_cm,
			width_cm = EXCLUDED.width_cm,
			height_cm = EXCLUDED.height_cm,
			weight_g = EXCLUDED.weight_g,
			volume_liters = EXCLUDED.volume_liters,
			delivery_info = EXCLUDED.delivery_info,
			keyword = EXCLUDED.keyword,
			scraped_at = EXCLUDED.scraped_at
	`,
		p.SKU, p.Title, p.ImageURL, p.ProductURL, p.Price, p.OriginalPrice, p.DiscountPercent,
		p.Category, p.Brand, p.Rating, p.ReviewCount, p.SellerType, p.SellerName, p.CreationDate,
		p.FollowerCount, p.FollowerMinPrice, p.FollowerMinURL,
		p.LengthCm, p.WidthCm, p.HeightCm, p.WeightG, p.VolumeLiters,
		p.DeliveryInfo, p.Keyword,
		p.WeeklySales, p.MonthlySales, string(p.SalesEstimateMethod), string(p.SalesConfidence),
		p.ScrapedAt,
	)
	return err
}

func (r *ProductRepository) Get(ctx context.Context, sku string) (model.ProductRecord, error) {
	var p model.ProductRecord
	var method, confidence string
	err := r.DB.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE sku = $1
	`, sku).Scan(
		&p.SKU, &p.Title, &p.ImageURL, &p.ProductURL, &p.Price, &p.OriginalPrice, &p.DiscountPercent,
		&p.Category, &p.Brand, &p.Rating, &p.ReviewCount, &p.SellerType, &p.SellerName, &p.CreationDate,
		&p.FollowerCount, &p.FollowerMinPrice, &p.FollowerMinURL,
		&p.LengthCm, &p.WidthCm, &p.HeightCm, &p.WeightG, &p.VolumeLiters,
		&p.DeliveryInfo, &p.Keyword,
		&p.WeeklySales, &p.MonthlySales, &method, &confidence,
		&p.ScrapedAt,
	)
	if err != nil {
		return model.ProductRecord{}, err
	}
	p.SalesEstimateMethod = model.Method(method)
	p.SalesConfidence = model.Confidence(confidence)
	return p, nil
}

// ListSKUs returns SKUs for a tracking pass, optionally narrowed to one
// keyword's catalogue.
func (r *ProductRepository) ListSKUs(ctx context.Context, keyword string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT sku FROM products ORDER BY scraped_at DESC LIMIT $1`
	args := []any{limit}
	if keyword != "" {
		query = `SELECT sku FROM products WHERE keyword = $1 ORDER BY scraped_at DESC LIMIT $2`
		args = []any{keyword, limit}
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, err
		}
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}

// UpdateSales writes derived estimation fields back onto a product row.
func (r *ProductRepository) UpdateSales(ctx context.Context, sku string, est model.SalesEstimate) error {
	var p model.ProductRecord
	est.Apply(&p)
	_, err := r.DB.ExecContext(ctx, `
		UPDATE products
		SET weekly_sales = $1, monthly_sales = $2,
			sales_estimate_method = $3, sales_confidence = $4
		WHERE sku = $5
	`,
		p.WeeklySales, p.MonthlySales,
		string(p.SalesEstimateMethod), string(p.SalesConfidence),
		sku,
	)
	return err
}

// ProductInfo implements estimate.ProductLookup.
func (r *ProductRepository) ProductInfo(ctx context.Context, sku string) (estimate.ProductInfo, error) {
	p, err := r.Get(ctx, sku)
	if err != nil {
		return estimate.ProductInfo{}, err
	}
	return estimate.ProductInfo{
		ListedAt:     p.CreationDate,
		TotalReviews: p.ReviewCount,
	}, nil
}
