package magento

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/FFD-Group/Tidio-Products/internal/config"
)

// PriceResolver bulk-fetches final prices for a set of SKUs. Callers are
// expected to have excluded price-on-application SKUs already; those must
// never reach the lookup.
type PriceResolver struct {
	client    *Client
	chunkSize int
	store     string
	currency  string
	logger    *slog.Logger
}

func NewPriceResolver(client *Client, cfg config.MagentoConfig, logger *slog.Logger) *PriceResolver {
	return &PriceResolver{
		client:    client,
		chunkSize: cfg.PriceChunkSize,
		store:     cfg.Store,
		currency:  cfg.Currency,
		logger:    logger.With("source", "magento"),
	}
}

// ResolvePrices returns a sku -> price mapping. SKUs the API does not
// return are absent from the result; callers must treat absence as "no
// price available". SKUs returned by the API but not requested are logged
// and skipped.
func (r *PriceResolver) ResolvePrices(ctx context.Context, skus []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(skus))
	if len(skus) == 0 {
		return prices, nil
	}

	requested := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		requested[sku] = struct{}{}
	}

	for start := 0; start < len(skus); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(skus) {
			end = len(skus)
		}
		chunk := skus[start:end]

		params := url.Values{}
		params.Set("searchCriteria[filter_groups][0][filters][0][field]", "sku")
		params.Set("searchCriteria[filter_groups][0][filters][0][value]", strings.Join(chunk, ","))
		params.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "in")
		params.Set("searchCriteria[pageSize]", strconv.Itoa(len(chunk)))
		params.Set("storeId", r.store)
		params.Set("currencyCode", r.currency)

		var resp priceResponse
		if err := r.client.getJSON(ctx, "/products-render-info", params, &resp); err != nil {
			return nil, fmt.Errorf("fetch prices (%d skus): %w", len(chunk), err)
		}

		for _, item := range resp.Items {
			if _, ok := requested[item.SKU]; !ok {
				r.logger.Warn("price response contained unknown sku", "sku", item.SKU)
				continue
			}
			prices[item.SKU] = item.PriceInfo.ExtensionAttributes.TaxAdjustments.FinalPrice
		}
	}

	r.logger.Debug("resolved prices", "requested", len(skus), "resolved", len(prices))
	return prices, nil
}
