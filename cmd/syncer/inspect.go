package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FFD-Group/Tidio-Products/internal/batch"
	"github.com/FFD-Group/Tidio-Products/internal/checkpoint"
	"github.com/FFD-Group/Tidio-Products/internal/config"
)

// featureLimit is the destination's documented cap on feature values; the
// check mode flags anything longer.
const featureLimit = 255

func newInspectCmd() *cobra.Command {
	var (
		batchIndex int
		check      bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Interrogate the local checkpoint manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			m, err := checkpoint.NewFileStore(cfg.Checkpoint.LocalPath).Load()
			if err != nil {
				return fmt.Errorf("no manifest to inspect: %w", err)
			}

			switch {
			case check:
				return inspectCheck(m)
			case cmd.Flags().Changed("batch"):
				return inspectBatch(m, batchIndex)
			default:
				return inspectSummary(m)
			}
		},
	}

	cmd.Flags().IntVar(&batchIndex, "batch", 0, "show one batch in detail")
	cmd.Flags().BoolVar(&check, "check", false, "scan all batches for price and feature violations")
	return cmd
}

func inspectSummary(m *batch.Manifest) error {
	fmt.Printf("Manifest created: %s\n", m.Meta.CreatedAt)
	fmt.Printf("Sync kind:        %s\n", m.Meta.SyncKind)
	fmt.Printf("Total products:   %d\n", m.Meta.TotalProducts)
	fmt.Printf("Total batches:    %d\n\n", m.Meta.TotalBatches)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tSTATUS\tSIZE\tSENT AT")
	for _, b := range m.Batches {
		sentAt := b.SentAt
		if sentAt == "" {
			sentAt = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", b.Index, b.Status, b.Size, sentAt)
	}
	return w.Flush()
}

func inspectBatch(m *batch.Manifest, index int) error {
	if index < 0 || index >= len(m.Batches) {
		return fmt.Errorf("batch %d does not exist (0-%d)", index, len(m.Batches)-1)
	}
	b := m.Batches[index]

	fmt.Printf("Batch %d - status: %s, size: %d\n\n", b.Index, b.Status, b.Size)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tID\tSKU\tPRICE\tFEATURES\tFLAGS")
	for i, p := range b.Products {
		price := "null"
		if p.Price != nil {
			price = fmt.Sprintf("%.2f", *p.Price)
		}

		var flags string
		for key, value := range p.Features {
			if len(value) > featureLimit {
				flags += fmt.Sprintf("FEATURE>%d:%s ", featureLimit, key)
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", i, p.ID, p.SKU, price, len(p.Features), flags)
	}
	return w.Flush()
}

func inspectCheck(m *batch.Manifest) error {
	nullPrices := 0
	violations := 0

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, b := range m.Batches {
		for i, p := range b.Products {
			if p.Price == nil {
				nullPrices++
				fmt.Fprintf(w, "NULL PRICE\tbatch %d\tpos %d\t%s\t%s\n", b.Index, i, p.SKU, p.Title)
			}
			for key, value := range p.Features {
				if len(value) > featureLimit {
					violations++
					fmt.Fprintf(w, "FEATURE>%d\tbatch %d\tpos %d\t%s\t%s (%d chars)\n",
						featureLimit, b.Index, i, p.SKU, key, len(value))
				}
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d null prices, %d feature values over %d characters\n", nullPrices, violations, featureLimit)
	return nil
}
