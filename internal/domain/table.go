package domain

// Table is a physical table. Only the table synchronizer mutates Status and CurrentOrder.
type Table struct {
	ID           string
	Number       string
	Branch       string
	Seats        int
	Active       bool
	Status       TableStatus
	CurrentOrder *string
}

// Claim occupies the table for orderID. Re-claiming by the same order is a no-op.
// The caller decides whether an existing reference is stale.
func (t *Table) Claim(orderID string) {
	t.Status = TableInProgress
	t.CurrentOrder = &orderID
}

// Release frees the table. Idempotent.
func (t *Table) Release() {
	t.Status = TableAvailable
	t.CurrentOrder = nil
}

// HeldBy reports whether the table currently references orderID.
func (t *Table) HeldBy(orderID string) bool {
	return t.CurrentOrder != nil && *t.CurrentOrder == orderID
}

// Consistent checks that CurrentOrder is set if and only if the table is in progress.
func (t *Table) Consistent() bool {
	return (t.Status == TableInProgress) == (t.CurrentOrder != nil)
}

func (t *Table) Clone() *Table {
	c := *t
	if t.CurrentOrder != nil {
		ref := *t.CurrentOrder
		c.CurrentOrder = &ref
	}
	return &c
}
