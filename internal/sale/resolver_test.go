package sale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bookstore-checkout/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestActive_WithinWindow(t *testing.T) {
	sales := []model.Sale{
		{ID: 1, Percentage: 20, StartDate: date(2026, 6, 1), EndDate: date(2026, 6, 30)},
	}

	if s := Active(sales, date(2026, 6, 15)); s == nil || s.ID != 1 {
		t.Fatalf("expected sale 1 to be active, got %+v", s)
	}
	if s := Active(sales, date(2026, 6, 1)); s == nil {
		t.Fatalf("sale must be active on its start date")
	}
	if s := Active(sales, date(2026, 6, 30)); s == nil {
		t.Fatalf("sale must be active on its end date")
	}
}

func TestActive_OutsideWindow(t *testing.T) {
	sales := []model.Sale{
		{ID: 1, Percentage: 20, StartDate: date(2026, 6, 1), EndDate: date(2026, 6, 30)},
	}

	if s := Active(sales, date(2026, 5, 31)); s != nil {
		t.Fatalf("expected no active sale before start, got %+v", s)
	}
	if s := Active(sales, date(2026, 7, 1)); s != nil {
		t.Fatalf("expected no active sale after end, got %+v", s)
	}
}

func TestActive_TieBreak(t *testing.T) {
	tests := []struct {
		name   string
		sales  []model.Sale
		wantID int64
	}{
		{
			name: "earliest start date wins",
			sales: []model.Sale{
				{ID: 1, Percentage: 10, StartDate: date(2026, 6, 10), EndDate: date(2026, 6, 30)},
				{ID: 2, Percentage: 30, StartDate: date(2026, 6, 1), EndDate: date(2026, 6, 30)},
			},
			wantID: 2,
		},
		{
			name: "equal start dates, lowest id wins",
			sales: []model.Sale{
				{ID: 5, Percentage: 10, StartDate: date(2026, 6, 1), EndDate: date(2026, 6, 30)},
				{ID: 3, Percentage: 30, StartDate: date(2026, 6, 1), EndDate: date(2026, 6, 30)},
			},
			wantID: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Active(tt.sales, date(2026, 6, 15))
			if s == nil {
				t.Fatalf("expected an active sale")
			}
			if s.ID != tt.wantID {
				t.Fatalf("active sale id = %d, want %d", s.ID, tt.wantID)
			}
		})
	}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		price      string
		percentage int64
		want       string
	}{
		{"10.00", 20, "8"},
		{"9.99", 10, "8.99"},
		{"15.50", 0, "15.5"},
		{"7.00", 100, "0"},
	}

	for _, tt := range tests {
		got := Price(decimal.RequireFromString(tt.price), tt.percentage)
		if got.String() != tt.want {
			t.Fatalf("Price(%s, %d) = %s, want %s", tt.price, tt.percentage, got, tt.want)
		}
	}
}

func TestResolver_UnitPrice(t *testing.T) {
	sales := []model.Sale{
		{ID: 1, Percentage: 20, StartDate: date(2026, 6, 1), EndDate: date(2026, 6, 30), ProductIDs: []int64{7}},
	}
	r := NewResolver(sales, date(2026, 6, 15))

	discounted := r.UnitPrice(7, decimal.RequireFromString("10.00"))
	if !discounted.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("discounted price = %s, want 8.00", discounted)
	}

	full := r.UnitPrice(8, decimal.RequireFromString("10.00"))
	if !full.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("uncovered product price = %s, want 10.00", full)
	}
}

func TestResolver_NoActiveSale(t *testing.T) {
	r := NewResolver(nil, date(2026, 6, 15))

	price := decimal.RequireFromString("12.34")
	if got := r.UnitPrice(7, price); !got.Equal(price) {
		t.Fatalf("price without sale = %s, want %s", got, price)
	}
}
