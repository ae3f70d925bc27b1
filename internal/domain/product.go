package domain

// ProductStatus is the visibility status Tidio accepts for a product.
type ProductStatus string

const (
	StatusVisible ProductStatus = "visible"
	StatusHidden  ProductStatus = "hidden"
)

// Product is a destination-ready record as accepted by the Tidio batch
// endpoint. It is produced once per eligible catalog record and never
// mutated afterwards.
type Product struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	SKU             string            `json:"sku"`
	Title           string            `json:"title"`
	Status          ProductStatus     `json:"status"`
	UpdatedAt       string            `json:"updated_at"`
	ImageURL        string            `json:"image_url,omitempty"`
	Features        map[string]string `json:"features,omitempty"`
	Description     string            `json:"description"`
	DefaultCurrency string            `json:"default_currency"`
	// Price is nil for "price on application" products and for SKUs the
	// price lookup could not resolve; it marshals as an explicit null.
	Price       *float64 `json:"price"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
}
