package batch

import (
	"fmt"
	"time"

	"github.com/FFD-Group/Tidio-Products/internal/domain"
)

// Status is the delivery state of a single batch.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Meta describes the sync run a manifest belongs to.
type Meta struct {
	CreatedAt     string          `json:"created_at"`
	TotalProducts int             `json:"total_products"`
	TotalBatches  int             `json:"total_batches"`
	SyncKind      domain.SyncKind `json:"sync_kind"`
}

// Batch is one fixed-maximum-size group of products. Index is assigned at
// creation and never reassigned; list order equals delivery order.
type Batch struct {
	Index    int              `json:"index"`
	Size     int              `json:"size"`
	Status   Status           `json:"status"`
	SentAt   string           `json:"sent_at,omitempty"`
	Products []domain.Product `json:"products"`
}

// Manifest is the durable record of a sync run's batch-delivery progress.
// It is the single source of truth for resumability: the full product
// payload of every batch rides along so a resumed run never has to
// re-fetch or re-transform anything.
type Manifest struct {
	Meta    Meta    `json:"meta"`
	Batches []Batch `json:"batches"`
}

// New partitions products into contiguous batches of at most maxBatchSize,
// preserving input order. Every batch starts pending.
func New(products []domain.Product, maxBatchSize int, kind domain.SyncKind) *Manifest {
	m := &Manifest{
		Meta: Meta{
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
			TotalProducts: len(products),
			SyncKind:      kind,
		},
	}

	for start := 0; start < len(products); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(products) {
			end = len(products)
		}
		m.Batches = append(m.Batches, Batch{
			Index:    len(m.Batches),
			Size:     end - start,
			Status:   StatusPending,
			Products: products[start:end],
		})
	}

	m.Meta.TotalBatches = len(m.Batches)
	return m
}

// MarkSent records a confirmed delivery. Sent is terminal: marking an
// already-sent batch is a no-op.
func (m *Manifest) MarkSent(index int, at time.Time) error {
	b, err := m.batch(index)
	if err != nil {
		return err
	}
	if b.Status == StatusSent {
		return nil
	}
	b.Status = StatusSent
	b.SentAt = at.UTC().Format(time.RFC3339)
	return nil
}

// MarkFailed records a delivery error. A sent batch never reverts.
func (m *Manifest) MarkFailed(index int) error {
	b, err := m.batch(index)
	if err != nil {
		return err
	}
	if b.Status == StatusSent {
		return fmt.Errorf("batch %d already sent", index)
	}
	b.Status = StatusFailed
	return nil
}

// Complete reports whether every batch has been sent.
func (m *Manifest) Complete() bool {
	for i := range m.Batches {
		if m.Batches[i].Status != StatusSent {
			return false
		}
	}
	return true
}

// Unsent returns the indices of batches still awaiting delivery, in order.
// Failed batches count as unsent: resume treats them the same as pending.
func (m *Manifest) Unsent() []int {
	var indices []int
	for i := range m.Batches {
		if m.Batches[i].Status != StatusSent {
			indices = append(indices, m.Batches[i].Index)
		}
	}
	return indices
}

// SentCount returns the number of batches delivered so far.
func (m *Manifest) SentCount() int {
	n := 0
	for i := range m.Batches {
		if m.Batches[i].Status == StatusSent {
			n++
		}
	}
	return n
}

func (m *Manifest) batch(index int) (*Batch, error) {
	if index < 0 || index >= len(m.Batches) {
		return nil, fmt.Errorf("batch index %d out of range (0-%d)", index, len(m.Batches)-1)
	}
	return &m.Batches[index], nil
}
