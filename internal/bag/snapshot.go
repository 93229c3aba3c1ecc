// Package bag формирует снимок корзины покупателя с рассчитанными итогами.
package bag

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Line описывает одну строку корзины с уже рассчитанной ценой единицы
// товара (с учётом действующей акции).
type Line struct {
	ProductID int64
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Item представляет позицию корзины в снимке.
type Item struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Snapshot содержит позиции корзины и денежные итоги.
type Snapshot struct {
	Items                 []Item          `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	ItemCount             int             `json:"item_count"`
	Delivery              decimal.Decimal `json:"delivery"`
	FreeDeliveryDelta     decimal.Decimal `json:"free_delivery_delta"`
	FreeDeliveryThreshold decimal.Decimal `json:"free_delivery_threshold"`
	GrandTotal            decimal.Decimal `json:"grand_total"`
}

// Build рассчитывает снимок корзины: суммирует позиции, определяет
// стоимость доставки по порогу бесплатной доставки и общий итог.
// Всегда завершается успешно, пустая корзина даёт нулевые итоги.
func Build(lines []Line, threshold, standardFee decimal.Decimal) *Snapshot {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	snap := &Snapshot{
		Items:                 make([]Item, 0, len(lines)),
		Subtotal:              decimal.Zero,
		FreeDeliveryThreshold: threshold,
	}

	for _, l := range lines {
		lineTotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		snap.Items = append(snap.Items, Item{
			ProductID: l.ProductID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: lineTotal,
		})
		snap.Subtotal = snap.Subtotal.Add(lineTotal)
		snap.ItemCount += l.Quantity
	}

	if snap.Subtotal.LessThan(threshold) {
		snap.Delivery = standardFee
		snap.FreeDeliveryDelta = threshold.Sub(snap.Subtotal)
	} else {
		snap.Delivery = decimal.Zero
		snap.FreeDeliveryDelta = decimal.Zero
	}

	snap.GrandTotal = snap.Subtotal.Add(snap.Delivery)

	return snap
}

// MinorUnits переводит сумму в минимальные единицы валюты для платёжной
// системы, округляя до ближайшего целого.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
