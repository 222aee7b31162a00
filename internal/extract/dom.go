package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ozonscout/internal/model"
)

// Text-pattern heuristics for rendered page content. The DOM path only ever
// complements structured interception, so every field is optional here.
var (
	priceTokenRe    = regexp.MustCompile(`([\d\s\x{00a0}]+(?:[.,]\d+)?)\s*[₽¥]`)
	discountRe      = regexp.MustCompile(`[−-](\d+)%`)
	ratingReviewsRe = regexp.MustCompile(`(\d+[.,]\d+)\s*[•·]?\s*([\d\s,\x{00a0}]+)\s*(?:отзыв|оценк)`)
	simpleRatingRe  = regexp.MustCompile(`(\d+[.,]\d)\s*[★⭐]`)
	outOfStockRe    = regexp.MustCompile(`Нет в наличии|Закончился|Распродан`)
	followerOfferRe = regexp.MustCompile(`(\d+)\s*предложени[йяе][\s\S]{0,160}?от\s*([\d\s\x{00a0}]+(?:[.,]\d+)?)\s*[₽¥]`)
)

// ListCards extracts list-grade partial records from a rendered search page.
// Cards without a derivable SKU are dropped; the second return value counts
// them so the caller can report discards.
func ListCards(html string) ([]model.ProductRecord, int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0
	}
	var (
		records   []model.ProductRecord
		discarded int
		seen      = map[string]bool{}
	)
	doc.Find(`a[href*="/product/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if href == "" || seen[href] {
			return
		}
		seen[href] = true

		sku := SKUFromURL(href)
		if sku == "" {
			discarded++
			return
		}

		card := link.Closest(`[class*="tile"], [class*="card"], [class*="product"]`)
		if card.Length() == 0 {
			card = link.Parent().Parent()
		}

		rec := model.ProductRecord{
			SKU:        sku,
			ProductURL: absoluteURL(href),
		}
		fillCard(card, link, &rec)
		records = append(records, rec)
	})
	return records, discarded
}

func fillCard(card, link *goquery.Selection, rec *model.ProductRecord) {
	if t := strings.TrimSpace(card.Find(`span[class*="tsBody500Medium"], a[class*="tile-hover-target"]`).First().Text()); t != "" {
		rec.Title = t
	} else {
		rec.Title = strings.TrimSpace(link.Text())
	}

	if img := card.Find(`img[src*="cdn"], img[src*="ozon"]`).First(); img.Length() > 0 {
		rec.ImageURL, _ = img.Attr("src")
	}

	text := card.Text()

	if prices := priceTokenRe.FindAllStringSubmatch(text, 2); len(prices) > 0 {
		rec.Price, _ = parseNumber(prices[0][1])
		if len(prices) > 1 {
			rec.OriginalPrice, _ = parseNumber(prices[1][1])
		}
	}
	if m := discountRe.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[1])
		rec.DiscountPercent = float64(d)
	}

	if m := ratingReviewsRe.FindStringSubmatch(text); m != nil {
		rec.Rating, _ = parseNumber(m[1])
		if n, ok := parseNumber(strings.ReplaceAll(m[2], ",", "")); ok {
			rec.ReviewCount = int(n)
		}
	} else if m := simpleRatingRe.FindStringSubmatch(text); m != nil {
		rec.Rating, _ = parseNumber(m[1])
	}

	if b := strings.TrimSpace(card.Find(`[class*="brand"]`).First().Text()); b != "" {
		rec.Brand = b
	}
	if d := strings.TrimSpace(card.Find(`button[class*="delivery"], [class*="tsBodyControl400Small"]`).First().Text()); d != "" {
		rec.DeliveryInfo = d
	}
	if strings.Contains(text, "Ozon") && strings.Contains(text, "Express") {
		rec.SellerType = "Ozon"
	}
}

// DetailFromHTML derives detail-grade fields from a rendered product page.
// Used when interception produced nothing for the navigation.
func DetailFromHTML(pageURL, html string) (model.ProductRecord, error) {
	rec := model.ProductRecord{SKU: SKUFromURL(pageURL), ProductURL: pageURL}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil || rec.SKU == "" {
		if rec.SKU == "" {
			return rec, ErrIdentityMissing
		}
		return rec, nil
	}

	var crumbs []string
	doc.Find(`ol[class*="breadcrumb"] a, nav a[href*="/category/"]`).Each(func(_ int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			crumbs = append(crumbs, t)
		}
	})
	rec.Category = strings.Join(crumbs, " > ")

	if s := strings.TrimSpace(doc.Find(`[data-widget="webCurrentSeller"] a, [class*="seller"] a`).First().Text()); s != "" {
		rec.SellerName = s
		rec.SellerType = ClassifySeller(s)
	}

	var pairs []pair
	doc.Find(`[data-widget="webCharacteristics"] dl, [class*="characteristics"] tr`).Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find("dt, td:first-child").First().Text())
		val := strings.TrimSpace(row.Find("dd, td:last-child").First().Text())
		if key != "" && val != "" {
			pairs = append(pairs, pair{key, val})
		}
	})
	applyPairs(pairs, &rec)

	body := doc.Find("body").Text()
	if m := followerOfferRe.FindStringSubmatch(body); m != nil {
		rec.FollowerCount, _ = strconv.Atoi(m[1])
		rec.FollowerMinPrice, _ = parseNumber(m[2])
	}
	return rec, nil
}

// StockFromText reads the remaining-stock signal out of visible page text.
// An explicit out-of-stock phrase reads as zero; no signal reads as nil.
func StockFromText(text string) *int {
	if m := stockLeftRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &n
	}
	if outOfStockRe.MatchString(text) {
		n := 0
		return &n
	}
	return nil
}

// ReviewCountFromText reads the review total from a rating/reviews line.
func ReviewCountFromText(text string) *int {
	m := ratingReviewsRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	f, ok := parseNumber(strings.ReplaceAll(m[2], ",", ""))
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return "https://www.ozon.ru" + href
}
