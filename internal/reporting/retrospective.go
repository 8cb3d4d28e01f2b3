// Package reporting summarizes recorded gateway transactions.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/transaction"
)

// RetrospectiveReport summarizes gateway activity over a set of transactions.
type RetrospectiveReport struct {
	TotalTransactions int `json:"total_transactions"`
	Successful        int `json:"successful"`
	Failed            int `json:"failed"`
	ActionRequired    int `json:"action_required"`
	// CapturedByCurrency sums successful captures that need no further
	// customer action.
	CapturedByCurrency map[string]decimal.Decimal `json:"captured_by_currency"`
	// RefundedByCurrency sums successful refunds and voids.
	RefundedByCurrency map[string]decimal.Decimal `json:"refunded_by_currency"`
	ByKind             map[string]int             `json:"by_kind"`
	ErrorBreakdown     map[string]int             `json:"error_breakdown"` // failure count per error message
	GatewayUsage       map[string]int             `json:"gateway_usage"`
	DateFrom           time.Time                  `json:"date_from"`
	DateTo             time.Time                  `json:"date_to"`
	ProcessingDuration time.Duration              `json:"processing_duration"`
}

// RetrospectiveReporter generates retrospective reports from transactions.
type RetrospectiveReporter struct{}

func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

func newReport() *RetrospectiveReport {
	return &RetrospectiveReport{
		CapturedByCurrency: make(map[string]decimal.Decimal),
		RefundedByCurrency: make(map[string]decimal.Decimal),
		ByKind:             make(map[string]int),
		ErrorBreakdown:     make(map[string]int),
		GatewayUsage:       make(map[string]int),
	}
}

// GenerateRetrospective analyzes txs and produces a RetrospectiveReport.
func (rr *RetrospectiveReporter) GenerateRetrospective(txs []transaction.Transaction) (*RetrospectiveReport, error) {
	report := newReport()
	if len(txs) == 0 {
		return report, nil
	}

	report.DateFrom = txs[0].CreatedAt
	report.DateTo = txs[0].CreatedAt
	for _, tx := range txs {
		report.TotalTransactions++

		if tx.CreatedAt.Before(report.DateFrom) {
			report.DateFrom = tx.CreatedAt
		}
		if tx.CreatedAt.After(report.DateTo) {
			report.DateTo = tx.CreatedAt
		}
		if tx.Gateway != "" {
			report.GatewayUsage[tx.Gateway]++
		}
		report.ByKind[tx.Kind.String()]++
		if tx.ActionRequired {
			report.ActionRequired++
		}

		if !tx.IsSuccess {
			report.Failed++
			if tx.Error != "" {
				report.ErrorBreakdown[tx.Error]++
			}
			continue
		}
		report.Successful++
		currency := adapter.NormalizeCurrency(tx.Currency)
		switch tx.Kind {
		case adapter.KindCapture:
			// Pending customer action, nothing has been captured yet.
			if tx.ActionRequired {
				continue
			}
			report.CapturedByCurrency[currency] = report.CapturedByCurrency[currency].Add(tx.Amount)
		case adapter.KindRefund, adapter.KindVoid:
			report.RefundedByCurrency[currency] = report.RefundedByCurrency[currency].Add(tx.Amount)
		}
	}
	report.ProcessingDuration = report.DateTo.Sub(report.DateFrom)

	return report, nil
}
