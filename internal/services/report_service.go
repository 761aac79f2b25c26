package services

import (
	"context"
	"log"
	"time"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/repository"
)

// Report aggregates normalized transactions. ByType counts transactions per
// canonical type; Skipped counts records that failed normalization.
type Report struct {
	Since         time.Time                `json:"since"`
	TotalCents    int64                    `json:"totalCents"`
	PurchaseCount int                      `json:"purchaseCount"`
	ByType        map[models.EntryType]int `json:"byType"`
	Skipped       int                      `json:"skipped"`
}

// ReportService reads ledger history and never writes
type ReportService struct {
	store repository.Store
}

func NewReportService(store repository.Store) *ReportService {
	return &ReportService{store: store}
}

// RevenueReport normalizes legacy records and current ledger entries since
// the given time and sums their revenue. Records whose timestamp cannot be
// resolved are always included.
func (s *ReportService) RevenueReport(ctx context.Context, since time.Time) (*Report, error) {
	legacy, err := s.store.ListLegacyRecords(ctx)
	if err != nil {
		return nil, storeError(err, "legacy record")
	}
	entries, err := s.store.ListEntriesSince(ctx, since)
	if err != nil {
		return nil, storeError(err, "ledger entry")
	}

	report := &Report{
		Since:  since,
		ByType: make(map[models.EntryType]int),
	}
	sinceMillis := since.UnixMilli()
	for _, rec := range legacy {
		report.add(rec.ID, rec.Record, sinceMillis)
	}
	for _, entry := range entries {
		report.add(entry.ID, EntryRecord(entry), sinceMillis)
	}

	log.Printf("[REPORT] revenue since %s: %d cents from %d purchases, %d skipped",
		since.Format(time.RFC3339), report.TotalCents, report.PurchaseCount, report.Skipped)
	return report, nil
}

func (r *Report) add(id string, raw models.RawRecord, sinceMillis int64) {
	tx, err := Normalize(raw, id)
	if err != nil {
		log.Printf("[REPORT] skipping record %s: %v", id, err)
		r.Skipped++
		return
	}
	if tx.Timestamp != 0 && tx.Timestamp < sinceMillis {
		return
	}

	r.ByType[tx.Type]++
	if tx.Type == models.EntryTypePurchaseCurrency {
		r.PurchaseCount++
	}
	r.TotalCents += RevenueCents(tx)
}
