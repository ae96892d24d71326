package vending

import "github.com/Veraticus/blue-coffee-vending/internal/model"

type productDTO struct {
	Name     string `json:"name"`
	SlotNo   string `json:"slot_no"`
	ImageURL string `json:"image_url"`
	ID       int    `json:"id"`
	Price    int    `json:"price"`
	Stock    int    `json:"stock"`
}

func (p productDTO) toModel() model.Product {
	return model.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		SlotCode: p.SlotNo,
		ImageRef: p.ImageURL,
	}
}

type moneyStockDTO struct {
	Quantity *int   `json:"quantity"`
	Qty      *int   `json:"qty"`
	Type     string `json:"type"`
	Denom    int    `json:"denom"`
}

func (m moneyStockDTO) toModel() model.MoneyStock {
	stock := model.MoneyStock{Denom: model.Denomination(m.Denom)}
	switch {
	case m.Quantity != nil:
		stock.Quantity = *m.Quantity
	case m.Qty != nil:
		stock.Quantity = *m.Qty
	}
	switch model.MoneyKind(m.Type) {
	case model.KindCoin, model.KindNote:
		stock.Type = model.MoneyKind(m.Type)
	default:
		stock.Type = stock.Denom.Kind()
	}
	return stock
}

type selectRequest struct {
	ProductID int `json:"product_id"`
}

type selectResponse struct {
	SessionID      string `json:"session_id"`
	InsertedAmount int    `json:"inserted_amount"`
}

type insertRequest struct {
	SessionID string `json:"session_id"`
	Denom     int    `json:"denom"`
}

type insertResponse struct {
	InsertedAmount *int   `json:"inserted_amount"`
	Status         string `json:"status"`
	Price          int    `json:"price"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type changeItemDTO struct {
	Denom int `json:"denom"`
	Qty   int `json:"qty"`
}

type confirmResponse struct {
	Status  string `json:"status"`
	Product struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	} `json:"product"`
	ChangeDetail   []changeItemDTO `json:"change_detail"`
	Paid           int             `json:"paid"`
	Price          int             `json:"price"`
	Change         int             `json:"change"`
	RemainingStock int             `json:"remaining_stock"`
}

func (c confirmResponse) toModel() model.TransactionResult {
	detail := make([]model.ChangeItem, 0, len(c.ChangeDetail))
	for _, item := range c.ChangeDetail {
		detail = append(detail, model.ChangeItem{Denom: model.Denomination(item.Denom), Qty: item.Qty})
	}
	return model.TransactionResult{
		Status:         c.Status,
		Product:        model.ProductRef{ID: c.Product.ID, Name: c.Product.Name},
		ChangeDetail:   detail,
		Paid:           c.Paid,
		Price:          c.Price,
		Change:         c.Change,
		RemainingStock: c.RemainingStock,
	}
}
