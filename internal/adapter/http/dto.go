package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type ItemRequest struct {
	ItemCode   string            `json:"item_code"`
	Qty        int               `json:"qty"`
	Notes      string            `json:"notes,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type CreateOrderRequest struct {
	TableID string        `json:"table_id"`
	Items   []ItemRequest `json:"items"`
	Submit  bool          `json:"submit"`
}

type AddItemsRequest struct {
	Items []ItemRequest `json:"items"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type DeliverRequest struct {
	ItemIDs  []string `json:"item_ids,omitempty"`
	AllReady bool     `json:"all_ready"`
}

type ResolveVariantRequest struct {
	TemplateCode string            `json:"template_code"`
	Attributes   map[string]string `json:"attributes"`
}

type OrderItemResponse struct {
	ID           string          `json:"id"`
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name"`
	TemplateCode string          `json:"template_code,omitempty"`
	Qty          int             `json:"qty"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	Station      string          `json:"station"`
	Notes        string          `json:"notes,omitempty"`
	LastUpdateBy string          `json:"last_update_by"`
	LastUpdateAt time.Time       `json:"last_update_at"`
}

type OrderResponse struct {
	ID          string                  `json:"id"`
	Branch      string                  `json:"branch"`
	TableID     string                  `json:"table_id"`
	Status      string                  `json:"status"`
	OrderedBy   string                  `json:"ordered_by"`
	TotalQty    int                     `json:"total_qty"`
	TotalAmount decimal.Decimal         `json:"total_amount"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	Items       []OrderItemResponse     `json:"items"`
	Progress    *domain.ProgressSummary `json:"progress,omitempty"`
}

type TableResponse struct {
	TableID  string                 `json:"table_id"`
	Number   string                 `json:"number"`
	Status   string                 `json:"status"`
	OrderID  *string                `json:"order_id"`
	Progress domain.ProgressSummary `json:"progress"`
}

type StatusLogResponse struct {
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}

type StationResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ItemGroups []string `json:"item_groups"`
}

func toItemInputs(items []ItemRequest) []interfaces.ItemInput {
	out := make([]interfaces.ItemInput, len(items))
	for i, it := range items {
		out[i] = interfaces.ItemInput{
			ItemCode:   it.ItemCode,
			Qty:        it.Qty,
			Notes:      it.Notes,
			Attributes: it.Attributes,
		}
	}
	return out
}

func toOrderResponse(o *domain.Order, progress *domain.ProgressSummary) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		Branch:      o.Branch,
		TableID:     o.TableID,
		Status:      string(o.Status),
		OrderedBy:   o.OrderedBy,
		TotalQty:    o.TotalQty,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Items:       make([]OrderItemResponse, 0, len(o.Items)),
		Progress:    progress,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:           it.ID,
			ItemCode:     it.ItemCode,
			ItemName:     it.ItemName,
			TemplateCode: it.TemplateCode,
			Qty:          it.Qty,
			Rate:         it.Rate,
			Amount:       it.Amount,
			Status:       string(it.Status),
			Station:      it.StationOrUnassigned(),
			Notes:        it.Notes,
			LastUpdateBy: it.LastUpdateBy,
			LastUpdateAt: it.LastUpdateAt,
		})
	}
	return resp
}
