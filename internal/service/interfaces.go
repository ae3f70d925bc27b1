package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/FFD-Group/Tidio-Products/internal/batch"
	"github.com/FFD-Group/Tidio-Products/internal/domain"
	"github.com/FFD-Group/Tidio-Products/internal/source/magento"
)

// Catalog pages the source catalog under the active/visible filter set.
type Catalog interface {
	FetchProducts(ctx context.Context, full bool) ([]magento.RawProduct, error)
}

// Enricher warms the category-name cache ahead of per-record lookups.
type Enricher interface {
	PrefetchCategories(ctx context.Context) error
}

// PriceResolver bulk-fetches prices for the given SKUs.
type PriceResolver interface {
	ResolvePrices(ctx context.Context, skus []string) (map[string]float64, error)
}

// Transformer maps raw records to destination products.
type Transformer interface {
	Eligible(p magento.RawProduct) bool
	Transform(ctx context.Context, p magento.RawProduct, prices map[string]float64) (domain.Product, error)
}

// Deliverer sends one batch to the destination.
type Deliverer interface {
	Deliver(ctx context.Context, products []domain.Product) error
}

// CheckpointStore persists the manifest locally.
type CheckpointStore interface {
	Save(m *batch.Manifest) error
	Load() (*batch.Manifest, error)
}

// RemoteStore persists the manifest across process restarts.
type RemoteStore interface {
	Upload(ctx context.Context, m *batch.Manifest) (string, error)
	Download(ctx context.Context, ref string) (*batch.Manifest, error)
}

// RunStore records finished runs for operators.
type RunStore interface {
	Record(ctx context.Context, run *domain.SyncRun) error
}

// Publisher emits run-completion events.
type Publisher interface {
	PublishRun(ctx context.Context, result *domain.SyncResult) error
	Close() error
}
