package domain

import "github.com/shopspring/decimal"

// ProgressSummary counts item units by status for display. It never feeds back
// into the order status.
type ProgressSummary struct {
	Lines       int             `json:"lines"`
	Units       int             `json:"units"`
	New         int             `json:"new"`
	Cooking     int             `json:"cooking"`
	Ready       int             `json:"ready"`
	Delivered   int             `json:"delivered"`
	Cancelled   int             `json:"cancelled"`
	InProgress  int             `json:"in_progress"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func Summarize(items []*OrderItem) ProgressSummary {
	s := ProgressSummary{TotalAmount: decimal.Zero}
	for _, it := range items {
		s.Lines++
		switch it.Status {
		case ItemNew:
			s.New += it.Qty
		case ItemCooking:
			s.Cooking += it.Qty
		case ItemReady:
			s.Ready += it.Qty
		case ItemDelivered:
			s.Delivered += it.Qty
		case ItemCancelled:
			s.Cancelled += it.Qty
			continue
		}
		s.Units += it.Qty
		s.TotalAmount = s.TotalAmount.Add(it.Amount)
	}
	s.InProgress = s.New + s.Cooking
	return s
}
