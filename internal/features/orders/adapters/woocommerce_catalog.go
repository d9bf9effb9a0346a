package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/config"
	"commerce-backend/internal/core/httpclient"
	"commerce-backend/internal/features/orders/domain"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// WooCommerceCatalog implements the CatalogProvider interface using the WooCommerce REST API.
type WooCommerceCatalog struct {
	client *resty.Client
}

// NewWooCommerceCatalog creates a new instance of WooCommerceCatalog.
func NewWooCommerceCatalog(cfg config.WooCommerceConfig) *WooCommerceCatalog {
	client := resty.NewWithClient(httpclient.NewClient("catalog", 10*time.Second)).
		SetBaseURL(cfg.URL).
		SetBasicAuth(cfg.ConsumerKey, cfg.ConsumerSecret).
		SetHeader("Accept", "application/json")

	return &WooCommerceCatalog{client: client}
}

// GetProduct fetches a product and maps its prices to a snapshot.
func (a *WooCommerceCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", productID).
		Get("/wp-json/wc/v3/products/{id}")
	if err != nil {
		return nil, fmt.Errorf("%w: catalog request failed: %v", apperr.ErrExternalService, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: product %s", apperr.ErrNotFound, productID)
	default:
		return nil, fmt.Errorf("%w: woocommerce API returned status: %d", apperr.ErrExternalService, resp.StatusCode())
	}

	var product wcProduct
	if err := json.Unmarshal(resp.Body(), &product); err != nil {
		return nil, fmt.Errorf("%w: failed to decode product: %v", apperr.ErrExternalService, err)
	}

	return product.toDomain(productID)
}

// HealthCheck verifies that the WooCommerce API is reachable and credentials are valid.
func (a *WooCommerceCatalog) HealthCheck(ctx context.Context) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("per_page", "1").
		Get("/wp-json/wc/v3/products")
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode())
	}
	return nil
}

// wcProduct represents the JSON structure of a product from WooCommerce API.
type wcProduct struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
}

// toDomain uses the regular price as the unit price; an active sale price
// becomes the per-unit discount.
func (p wcProduct) toDomain(requestedID string) (*domain.Product, error) {
	raw := p.RegularPrice
	if raw == "" {
		raw = p.Price
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: product %s has no usable price %q", apperr.ErrExternalService, requestedID, raw)
	}

	discount := decimal.Zero
	if p.SalePrice != "" {
		sale, err := decimal.NewFromString(p.SalePrice)
		if err == nil && sale.LessThan(price) && !sale.IsNegative() {
			discount = price.Sub(sale)
		}
	}

	id := requestedID
	if p.ID != 0 {
		id = strconv.Itoa(p.ID)
	}

	return &domain.Product{
		ID:       id,
		Name:     p.Name,
		Price:    price,
		Discount: discount,
	}, nil
}
