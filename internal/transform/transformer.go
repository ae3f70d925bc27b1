package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/FFD-Group/Tidio-Products/internal/domain"
	"github.com/FFD-Group/Tidio-Products/internal/source/magento"
)

// ValidationError signals a malformed input record (missing the custom
// attribute collection). Every other missing optional field degrades
// gracefully instead of failing.
type ValidationError struct {
	SKU    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %s: %s", e.SKU, e.Reason)
}

// FormatError signals a source timestamp that cannot be normalized.
type FormatError struct {
	SKU   string
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("record %s: cannot format timestamp %q", e.SKU, e.Value)
}

// Enrichment resolves foreign-key-like references into display labels.
// Implemented by magento.Enricher; tests supply their own.
type Enrichment interface {
	CategoryName(ctx context.Context, id string) (string, error)
	AttributeLabel(ctx context.Context, code, value string) (string, bool, error)
}

const sourceTimeLayout = "2006-01-02 15:04:05"

// featurePrefix is stripped from attribute codes when forming feature keys.
const featurePrefix = "filt_"

// Config carries the transform policy switches. Two source generations
// disagree on discontinued handling and feature truncation, so both are
// options rather than constants.
type Config struct {
	HideDiscontinued   bool
	MaxFeatureLength   int // 0 disables truncation
	ExcludedAttributes []string
	BrandAttribute     string
	Currency           string
	MediaBaseURL       string
	StoreBaseURL       string
	WebsiteID          int64
}

// Transformer maps one raw catalog record plus enrichment results into one
// destination product.
type Transformer struct {
	cfg      Config
	excluded map[string]struct{}
	enrich   Enrichment
	logger   *slog.Logger
}

func New(cfg Config, enrich Enrichment, logger *slog.Logger) *Transformer {
	excluded := make(map[string]struct{}, len(cfg.ExcludedAttributes))
	for _, code := range cfg.ExcludedAttributes {
		excluded[code] = struct{}{}
	}
	return &Transformer{
		cfg:      cfg,
		excluded: excluded,
		enrich:   enrich,
		logger:   logger.With("component", "transform"),
	}
}

// Eligible applies the website-membership filter. Records that declare
// website ids must include the configured website; records without the
// list are kept rather than silently dropped.
func (t *Transformer) Eligible(p magento.RawProduct) bool {
	if t.cfg.WebsiteID == 0 || len(p.ExtensionAttributes.WebsiteIDs) == 0 {
		return true
	}
	for _, id := range p.ExtensionAttributes.WebsiteIDs {
		if id == t.cfg.WebsiteID {
			return true
		}
	}
	return false
}

// Transform builds the destination product for one raw record.
func (t *Transformer) Transform(ctx context.Context, p magento.RawProduct, prices map[string]float64) (domain.Product, error) {
	if p.CustomAttributes == nil {
		return domain.Product{}, &ValidationError{SKU: p.SKU, Reason: "record has no custom_attributes"}
	}

	updatedAt, err := t.formatUpdatedAt(p)
	if err != nil {
		return domain.Product{}, err
	}

	out := domain.Product{
		ID:              strconv.FormatInt(p.ID, 10),
		SKU:             p.SKU,
		Title:           p.Name,
		Status:          t.status(p),
		UpdatedAt:       updatedAt,
		URL:             t.productURL(p),
		ImageURL:        t.imageURL(p),
		DefaultCurrency: t.cfg.Currency,
	}

	if v, ok := p.Attr("description"); ok {
		out.Description = v.String()
	}

	if price, ok := prices[p.SKU]; ok {
		out.Price = &price
	}

	features, err := t.features(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	out.Features = features

	out.Vendor = t.vendor(ctx, p)
	out.ProductType = t.productType(ctx, p)

	return out, nil
}

func (t *Transformer) status(p magento.RawProduct) domain.ProductStatus {
	if !t.cfg.HideDiscontinued {
		return domain.StatusVisible
	}
	if v, ok := p.Attr("discontinued"); ok && v.Truthy() {
		return domain.StatusHidden
	}
	return domain.StatusVisible
}

func (t *Transformer) formatUpdatedAt(p magento.RawProduct) (string, error) {
	if p.UpdatedAt == "" {
		return "", &FormatError{SKU: p.SKU, Value: p.UpdatedAt}
	}
	ts, err := time.Parse(sourceTimeLayout, p.UpdatedAt)
	if err != nil {
		return "", &FormatError{SKU: p.SKU, Value: p.UpdatedAt}
	}
	return ts.Format(time.RFC3339), nil
}

func (t *Transformer) imageURL(p magento.RawProduct) string {
	for _, media := range p.MediaGalleryEntries {
		for _, mt := range media.Types {
			if mt == "image" {
				return t.cfg.MediaBaseURL + media.File
			}
		}
	}
	return ""
}

func (t *Transformer) productURL(p magento.RawProduct) string {
	if v, ok := p.Attr("url_key"); ok && v.String() != "" {
		return t.cfg.StoreBaseURL + "/" + v.String()
	}
	// Magento's canonical fallback route.
	return t.cfg.StoreBaseURL + "/catalog/product/view/id/" + strconv.FormatInt(p.ID, 10)
}

// features builds the feature map from custom attributes, in list order:
// excluded codes and empty values are skipped, values resolve to their
// option label when one exists, the filt_ prefix is stripped from keys and
// values are capped at the configured length.
func (t *Transformer) features(ctx context.Context, p magento.RawProduct) (map[string]string, error) {
	features := make(map[string]string)

	for _, attr := range p.CustomAttributes {
		if _, skip := t.excluded[attr.Code]; skip {
			continue
		}
		value := attr.Value.String()
		if value == "" {
			continue
		}

		label, ok, err := t.enrich.AttributeLabel(ctx, attr.Code, value)
		if err != nil {
			return nil, fmt.Errorf("resolve label for %s: %w", attr.Code, err)
		}
		if ok {
			value = label
		}

		if t.cfg.MaxFeatureLength > 0 {
			// The cap counts characters, not bytes; slicing bytes could
			// split a rune on multibyte values.
			if runes := []rune(value); len(runes) > t.cfg.MaxFeatureLength {
				value = string(runes[:t.cfg.MaxFeatureLength])
			}
		}

		features[strings.TrimPrefix(attr.Code, featurePrefix)] = value
	}

	if len(features) == 0 {
		return nil, nil
	}
	return features, nil
}

// vendor resolves the configured brand attribute through the enrichment
// cache. The field is omitted entirely when resolution fails.
func (t *Transformer) vendor(ctx context.Context, p magento.RawProduct) string {
	if t.cfg.BrandAttribute == "" {
		return ""
	}
	v, ok := p.Attr(t.cfg.BrandAttribute)
	if !ok || v.String() == "" {
		return ""
	}
	label, ok, err := t.enrich.AttributeLabel(ctx, t.cfg.BrandAttribute, v.String())
	if err != nil {
		t.logger.Warn("vendor lookup failed", "sku", p.SKU, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return label
}

// productType is the name of the most specific (last) category in the
// record's category list, omitted when the record has none.
func (t *Transformer) productType(ctx context.Context, p magento.RawProduct) string {
	v, ok := p.Attr("category_ids")
	if !ok {
		return ""
	}
	ids := v.List()
	if len(ids) == 0 {
		return ""
	}
	name, err := t.enrich.CategoryName(ctx, ids[len(ids)-1])
	if err != nil {
		t.logger.Warn("category lookup failed", "sku", p.SKU, "category", ids[len(ids)-1], "error", err)
		return ""
	}
	return name
}
