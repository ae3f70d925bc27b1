package magento

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/FFD-Group/Tidio-Products/internal/config"
)

const productFields = "items[" +
	"id,sku,name,status,updated_at,media_gallery_entries," +
	"extension_attributes[website_ids,configurable_product_links],custom_attributes" +
	"],errors,message,total_count"

// FetchError signals a malformed or errored catalog response: the page
// body carried an error envelope instead of a total_count. It is fatal for
// the fetch phase and never retried here.
type FetchError struct {
	Message string
}

func (e *FetchError) Error() string {
	return "catalog fetch: " + e.Message
}

// Catalog pages the Magento products search API.
type Catalog struct {
	client           *Client
	pageSize         int
	updateAgeMinutes int
	location         *time.Location
	logger           *slog.Logger
}

func NewCatalog(client *Client, cfg config.MagentoConfig, logger *slog.Logger) (*Catalog, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Catalog{
		client:           client,
		pageSize:         cfg.PageSize,
		updateAgeMinutes: cfg.UpdateAgeMinutes,
		location:         loc,
		logger:           logger.With("source", "magento"),
	}, nil
}

// FetchProducts returns every active, catalog/search-visible record. When
// full is false the result is additionally restricted to records modified
// within the configured update age. A zero total count yields an empty
// slice, not an error.
func (c *Catalog) FetchProducts(ctx context.Context, full bool) ([]RawProduct, error) {
	params := c.searchCriteria(full)

	var all []RawProduct
	total := -1

	for page := 1; total < 0 || len(all) < total; page++ {
		params.Set("searchCriteria[currentPage]", strconv.Itoa(page))

		var resp productsResponse
		if err := c.client.getJSON(ctx, "/products", params, &resp); err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		if resp.TotalCount == nil {
			return nil, &FetchError{Message: c.envelopeMessage(resp)}
		}
		total = *resp.TotalCount

		if total == 0 {
			c.logger.Info("no product updates found")
			return nil, nil
		}

		all = append(all, resp.Items...)

		c.logger.Debug("fetched page",
			"page", page,
			"products", len(resp.Items),
			"total", total,
		)

		if len(resp.Items) == 0 {
			break
		}
	}

	c.logger.Info("fetched products", "count", len(all), "full", full)
	return all, nil
}

func (c *Catalog) searchCriteria(full bool) url.Values {
	params := url.Values{}
	params.Set("searchCriteria[filter_groups][1][filters][0][field]", "status")
	params.Set("searchCriteria[filter_groups][1][filters][0][value]", "1")
	params.Set("searchCriteria[filter_groups][1][filters][0][condition_type]", "eq")
	params.Set("searchCriteria[filter_groups][2][filters][0][field]", "visibility")
	params.Set("searchCriteria[filter_groups][2][filters][0][value]", "2,3,4")
	params.Set("searchCriteria[filter_groups][2][filters][0][condition_type]", "in")
	params.Set("searchCriteria[pageSize]", strconv.Itoa(c.pageSize))
	params.Set("fields", productFields)

	if !full {
		updatedAfter := time.Now().In(c.location).
			Add(-time.Duration(c.updateAgeMinutes) * time.Minute).
			Format("2006-01-02 15:04:05")
		params.Set("searchCriteria[filter_groups][0][filters][0][field]", "updated_at")
		params.Set("searchCriteria[filter_groups][0][filters][0][value]", updatedAfter)
		params.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "gteq")
	}

	return params
}

func (c *Catalog) envelopeMessage(resp productsResponse) string {
	if len(resp.Errors) > 0 {
		data, err := json.Marshal(resp.Errors)
		if err == nil {
			return "upstream errors: " + string(data)
		}
	}
	if resp.Message != "" {
		return "upstream message: " + resp.Message
	}
	return "response missing total_count"
}
