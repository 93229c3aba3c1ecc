// Package sale реализует выбор активной акции и расчёт цены со скидкой.
package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bookstore-checkout/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Active возвращает акцию, действующую в указанную дату.
// При пересечении нескольких акций выбирается акция с самой ранней датой
// начала, при равенстве — с меньшим идентификатором.
func Active(sales []model.Sale, today time.Time) *model.Sale {
	day := today.Truncate(24 * time.Hour)

	var chosen *model.Sale
	for i := range sales {
		s := &sales[i]
		if day.Before(s.StartDate) || day.After(s.EndDate) {
			continue
		}
		if chosen == nil {
			chosen = s
			continue
		}
		if s.StartDate.Before(chosen.StartDate) ||
			(s.StartDate.Equal(chosen.StartDate) && s.ID < chosen.ID) {
			chosen = s
		}
	}
	return chosen
}

// Price возвращает цену со скидкой: price × (100 − percentage) / 100,
// округлённую до копеек.
func Price(price decimal.Decimal, percentage int64) decimal.Decimal {
	return price.Mul(hundred.Sub(decimal.NewFromInt(percentage))).Div(hundred).Round(2)
}

// Resolver рассчитывает цену товара с учётом активной акции.
type Resolver struct {
	sale    *model.Sale
	covered map[int64]struct{}
}

// NewResolver выбирает активную акцию из списка и запоминает набор товаров,
// на которые она распространяется.
func NewResolver(sales []model.Sale, today time.Time) *Resolver {
	r := &Resolver{covered: make(map[int64]struct{})}

	r.sale = Active(sales, today)
	if r.sale != nil {
		for _, id := range r.sale.ProductIDs {
			r.covered[id] = struct{}{}
		}
	}

	return r
}

// UnitPrice возвращает цену единицы товара. Если активная акция
// распространяется на товар, применяется процент скидки, иначе цена
// возвращается без изменений.
func (r *Resolver) UnitPrice(productID int64, price decimal.Decimal) decimal.Decimal {
	if r.sale == nil {
		return price
	}
	if _, ok := r.covered[productID]; !ok {
		return price
	}
	return Price(price, r.sale.Percentage)
}
