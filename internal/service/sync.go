package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FFD-Group/Tidio-Products/internal/batch"
	"github.com/FFD-Group/Tidio-Products/internal/domain"
	"github.com/FFD-Group/Tidio-Products/internal/source/magento"
)

// Options carry the engine's own tunables; everything else lives with the
// collaborators.
type Options struct {
	MaxBatchSize int
	// CheckpointEvery is the number of successfully sent batches between
	// remote checkpoint pushes.
	CheckpointEvery  int
	TransformWorkers int
}

// SyncService orchestrates one sync run: fetch, enrich and transform,
// batch, deliver under the manifest state machine, and checkpoint. It owns
// the manifest exclusively for the duration of a run.
type SyncService struct {
	catalog     Catalog
	enricher    Enricher
	prices      PriceResolver
	transformer Transformer
	delivery    Deliverer
	local       CheckpointStore
	remote      RemoteStore
	runs        RunStore
	publisher   Publisher
	logger      *slog.Logger
	opts        Options
}

// NewSyncService wires the engine. remote, runs and publisher may be nil
// when the corresponding backends are not configured.
func NewSyncService(
	catalog Catalog,
	enricher Enricher,
	prices PriceResolver,
	transformer Transformer,
	delivery Deliverer,
	local CheckpointStore,
	remote RemoteStore,
	runs RunStore,
	publisher Publisher,
	logger *slog.Logger,
	opts Options,
) *SyncService {
	return &SyncService{
		catalog:     catalog,
		enricher:    enricher,
		prices:      prices,
		transformer: transformer,
		delivery:    delivery,
		local:       local,
		remote:      remote,
		runs:        runs,
		publisher:   publisher,
		logger:      logger.With("component", "sync"),
		opts:        opts,
	}
}

// Run executes a fresh sync of the given kind.
func (s *SyncService) Run(ctx context.Context, kind domain.SyncKind) (*domain.SyncResult, error) {
	started := time.Now()
	s.logger.Info("starting sync", "kind", kind)

	products, err := s.buildProducts(ctx, kind == domain.SyncFull)
	if err != nil {
		s.finish(ctx, nil, started, err)
		return nil, err
	}

	if len(products) == 0 {
		result := &domain.SyncResult{Kind: kind, Empty: true, Duration: time.Since(started)}
		s.logger.Info("nothing to sync", "kind", kind)
		s.finish(ctx, result, started, nil)
		return result, nil
	}

	m := batch.New(products, s.opts.MaxBatchSize, kind)
	s.logger.Info("batched products",
		"products", m.Meta.TotalProducts,
		"batches", m.Meta.TotalBatches,
	)

	// Persist before the first delivery attempt so the run artifact exists
	// even if delivery never gets off the ground.
	s.persistLocal(m)

	result := s.deliverAll(ctx, m)
	result.Duration = time.Since(started)
	s.finish(ctx, result, started, nil)
	return result, nil
}

// Resume picks up a previously checkpointed run. A non-empty ref loads the
// manifest from remote storage; otherwise the local checkpoint file is
// used. Fetch, transform and batching are skipped entirely: the manifest
// already holds fully-transformed products.
func (s *SyncService) Resume(ctx context.Context, ref string) (*domain.SyncResult, error) {
	started := time.Now()

	var (
		m   *batch.Manifest
		err error
	)
	if ref != "" {
		if s.remote == nil {
			return nil, fmt.Errorf("no remote checkpoint store configured")
		}
		m, err = s.remote.Download(ctx, ref)
	} else {
		m, err = s.local.Load()
	}
	if err != nil {
		err = fmt.Errorf("load manifest: %w", err)
		s.finish(ctx, nil, started, err)
		return nil, err
	}

	s.logger.Info("resuming sync",
		"kind", m.Meta.SyncKind,
		"batches", m.Meta.TotalBatches,
		"already_sent", m.SentCount(),
		"ref", ref,
	)

	result := s.deliverAll(ctx, m)
	result.Duration = time.Since(started)
	s.finish(ctx, result, started, nil)
	return result, nil
}

// buildProducts runs the fetch-enrich-transform pipeline.
func (s *SyncService) buildProducts(ctx context.Context, full bool) ([]domain.Product, error) {
	raw, err := s.catalog.FetchProducts(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var eligible []magento.RawProduct
	for _, p := range raw {
		if s.transformer.Eligible(p) {
			eligible = append(eligible, p)
		}
	}
	if skipped := len(raw) - len(eligible); skipped > 0 {
		s.logger.Debug("filtered by website membership", "skipped", skipped)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	if err := s.enricher.PrefetchCategories(ctx); err != nil {
		return nil, fmt.Errorf("prefetch categories: %w", err)
	}

	// Price-on-application SKUs never reach the price lookup; they keep
	// the null price sentinel.
	var skus []string
	for i := range eligible {
		if !eligible[i].PriceOnApplication() {
			skus = append(skus, eligible[i].SKU)
		}
	}

	prices, err := s.prices.ResolvePrices(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("resolve prices: %w", err)
	}

	// Records are independent, so transform concurrently; results land by
	// index to keep catalog order.
	products := make([]domain.Product, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.TransformWorkers)
	for i := range eligible {
		g.Go(func() error {
			p, err := s.transformer.Transform(gctx, eligible[i], prices)
			if err != nil {
				return err
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	return products, nil
}

// deliverAll walks the manifest in index order, delivering every batch not
// yet sent. A failed batch is recorded and the run continues; the manifest
// is persisted locally after every attempt and pushed to remote storage at
// the checkpoint cadence. Cancellation takes effect between batches: an
// in-flight delivery completes, the next one is never started.
func (s *SyncService) deliverAll(ctx context.Context, m *batch.Manifest) *domain.SyncResult {
	result := &domain.SyncResult{
		Kind:          m.Meta.SyncKind,
		TotalProducts: m.Meta.TotalProducts,
		TotalBatches:  m.Meta.TotalBatches,
	}

	sentSincePush := 0
	for i := range m.Batches {
		b := &m.Batches[i]
		if b.Status == batch.StatusSent {
			continue
		}

		if ctx.Err() != nil {
			s.logger.Warn("stopping delivery", "next_batch", b.Index, "error", ctx.Err())
			break
		}

		if err := s.delivery.Deliver(ctx, b.Products); err != nil {
			if markErr := m.MarkFailed(b.Index); markErr != nil {
				s.logger.Error("failed to mark batch", "batch", b.Index, "error", markErr)
			}
			s.logger.Error("batch delivery failed", "batch", b.Index, "size", b.Size, "error", err)
		} else {
			if markErr := m.MarkSent(b.Index, time.Now()); markErr != nil {
				s.logger.Error("failed to mark batch", "batch", b.Index, "error", markErr)
			}
			sentSincePush++
			s.logger.Info("batch delivered", "batch", b.Index, "size", b.Size)
		}

		s.persistLocal(m)

		if sentSincePush >= s.opts.CheckpointEvery {
			s.pushRemote(ctx, m, result)
			sentSincePush = 0
		}
	}

	s.persistLocal(m)
	if !m.Complete() {
		// The final push must survive cancellation: it carries the
		// reference the operator needs to resume.
		s.pushRemote(context.WithoutCancel(ctx), m, result)
	}

	result.Sent = m.SentCount()
	result.Unsent = m.Unsent()

	s.logger.Info("delivery finished",
		"sent", result.Sent,
		"unsent", len(result.Unsent),
		"remote_ref", result.RemoteRef,
	)
	return result
}

func (s *SyncService) persistLocal(m *batch.Manifest) {
	if err := s.local.Save(m); err != nil {
		s.logger.Warn("failed to persist manifest locally", "error", err)
	}
}

func (s *SyncService) pushRemote(ctx context.Context, m *batch.Manifest, result *domain.SyncResult) {
	if s.remote == nil {
		return
	}
	ref, err := s.remote.Upload(ctx, m)
	if err != nil {
		s.logger.Warn("failed to push checkpoint", "error", err)
		return
	}
	result.RemoteRef = ref
}

// finish records the run and emits the completion event, best effort.
func (s *SyncService) finish(ctx context.Context, result *domain.SyncResult, started time.Time, runErr error) {
	ctx = context.WithoutCancel(ctx)

	if s.runs != nil {
		if err := s.runs.Record(ctx, domain.NewSyncRun(result, started.UTC(), runErr)); err != nil {
			s.logger.Warn("failed to record run", "error", err)
		}
	}
	if s.publisher != nil && result != nil {
		if err := s.publisher.PublishRun(ctx, result); err != nil {
			s.logger.Warn("failed to publish run event", "error", err)
		}
	}
}
