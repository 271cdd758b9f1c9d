package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
)

// BillingMasterEntry is the persisted authoritative record for one
// business key. It is mutated only by sync runs; the comparison tool
// produces proposals and never writes here directly.
type BillingMasterEntry struct {
	ID        uint   `gorm:"primary_key" json:"id"`
	InvoiceNo string `gorm:"uniqueIndex:idx_billing_master_key,priority:1;size:64;not null" json:"invoice_no"`
	ItemNo    string `gorm:"uniqueIndex:idx_billing_master_key,priority:2;size:64;not null" json:"item_no"`
	CaseNo    string `gorm:"size:64" json:"case_no"`

	Qty                *decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	UnitPrice          *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`
	CorrectedUnitPrice *decimal.Decimal `gorm:"type:decimal(20,4)" json:"corrected_unit_price"`
	ExtendedPrice      *decimal.Decimal `gorm:"type:decimal(20,4)" json:"extended_price"`
	ExtendedCorrect    *decimal.Decimal `gorm:"type:decimal(20,4)" json:"extended_correct_price"`
	CreditTotal        *decimal.Decimal `gorm:"type:decimal(20,4)" json:"credit_total"`
	MarginPct          *decimal.Decimal `gorm:"type:decimal(20,6)" json:"margin_pct"`

	Category    string `gorm:"size:100" json:"category"`
	Description string `gorm:"size:255" json:"description"`
	RtnCrNo     string `gorm:"size:64" json:"rtn_cr_no"`
	CustomerNo  string `gorm:"size:64" json:"customer_no"`

	Version     int64      `gorm:"not null;default:0" json:"version"`
	VersionTime *time.Time `json:"version_time"`
	LastRunId   uint       `gorm:"index" json:"last_run_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ToEngine converts the persisted row to the engine's view.
func (e *BillingMasterEntry) ToEngine() recon.MasterEntry {
	out := recon.MasterEntry{
		Key: recon.Key{Invoice: e.InvoiceNo, Item: e.ItemNo, Case: e.CaseNo},

		Qty:                e.Qty,
		UnitPrice:          e.UnitPrice,
		CorrectedUnitPrice: e.CorrectedUnitPrice,
		ExtendedPrice:      e.ExtendedPrice,
		ExtendedCorrect:    e.ExtendedCorrect,
		CreditTotal:        e.CreditTotal,
		MarginPct:          e.MarginPct,

		Category:    e.Category,
		Description: e.Description,
		RtnCrNo:     e.RtnCrNo,
		CustomerNo:  e.CustomerNo,

		Version:   e.Version,
		LastRunID: e.LastRunId,
	}
	if e.VersionTime != nil {
		out.VersionTime = *e.VersionTime
	}
	return out
}

func masterEntryFromEngine(in recon.MasterEntry) BillingMasterEntry {
	out := BillingMasterEntry{
		InvoiceNo: in.Key.Invoice,
		ItemNo:    in.Key.Item,
		CaseNo:    in.Key.Case,

		Qty:                in.Qty,
		UnitPrice:          in.UnitPrice,
		CorrectedUnitPrice: in.CorrectedUnitPrice,
		ExtendedPrice:      in.ExtendedPrice,
		ExtendedCorrect:    in.ExtendedCorrect,
		CreditTotal:        in.CreditTotal,
		MarginPct:          in.MarginPct,

		Category:    in.Category,
		Description: in.Description,
		RtnCrNo:     in.RtnCrNo,
		CustomerNo:  in.CustomerNo,

		Version:   in.Version,
		LastRunId: in.LastRunID,
	}
	if !in.VersionTime.IsZero() {
		vt := in.VersionTime
		out.VersionTime = &vt
	}
	return out
}

// MasterStore is the GORM-backed recon.MasterStore.
type MasterStore struct {
	db *gorm.DB
}

func NewMasterStore(db *gorm.DB) *MasterStore {
	return &MasterStore{db: db}
}

func (s *MasterStore) Get(ctx context.Context, key recon.Key) (*recon.MasterEntry, error) {
	var row BillingMasterEntry
	err := s.db.WithContext(ctx).
		Where("invoice_no = ? AND item_no = ?", key.Invoice, key.Item).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := row.ToEngine()
	return &out, nil
}

// Put upserts one entry by business key. Each call is its own
// statement, so every entry commit is independently final.
func (s *MasterStore) Put(ctx context.Context, entry recon.MasterEntry) error {
	row := masterEntryFromEngine(entry)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "invoice_no"}, {Name: "item_no"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"case_no", "qty", "unit_price", "corrected_unit_price",
			"extended_price", "extended_correct", "credit_total", "margin_pct",
			"category", "description", "rtn_cr_no", "customer_no",
			"version", "version_time", "last_run_id", "updated_at",
		}),
	}).Create(&row).Error
}

// LoadMasterSnapshot reads the whole billing master as the explicit
// snapshot a sync run plans against.
func LoadMasterSnapshot(ctx context.Context) (*recon.Snapshot, error) {
	db := config.GetDB()
	var rows []BillingMasterEntry
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]recon.MasterEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToEngine())
	}
	return recon.NewSnapshot(entries), nil
}
