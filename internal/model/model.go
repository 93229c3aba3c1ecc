// Package model содержит доменные сущности сервиса оформления заказов книжного магазина.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bag представляет корзину покупателя: идентификатор товара → количество.
// Хранится в сессии и сериализуется в JSON без изменений.
type Bag map[string]int

// Product описывает книгу из каталога. Каталог принадлежит отдельному
// сервису, здесь товар доступен только для чтения.
type Product struct {
	ID    int64
	Title string
	Price decimal.Decimal
}

// Sale описывает акцию: процент скидки и период действия для набора книг.
type Sale struct {
	ID         int64
	Percentage int64
	StartDate  time.Time
	EndDate    time.Time
	ProductIDs []int64
}

// Order описывает оформленный заказ покупателя.
type Order struct {
	ID              int64
	OrderNumber     string
	UserProfileID   *int64
	FullName        string
	Email           string
	PhoneNumber     string
	Country         string
	Postcode        string
	TownOrCity      string
	StreetAddress1  string
	StreetAddress2  string
	County          string
	PaymentIntentID string
	OriginalBag     string
	DeliveryCost    decimal.Decimal
	OrderTotal      decimal.Decimal
	GrandTotal      decimal.Decimal
	CreatedAt       time.Time
}

// OrderLineItem описывает одну позицию заказа.
type OrderLineItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// UserProfile описывает профиль зарегистрированного покупателя
// с адресом доставки по умолчанию.
type UserProfile struct {
	ID       int64
	Username string
	FullName string
	Email    string
	DefaultAddress
}

// DefaultAddress содержит адресные поля профиля покупателя.
type DefaultAddress struct {
	PhoneNumber    string
	Country        string
	Postcode       string
	TownOrCity     string
	StreetAddress1 string
	StreetAddress2 string
	County         string
}

// OrderForm содержит поля формы оформления заказа в том виде,
// в котором их отправил покупатель.
type OrderForm struct {
	FullName       string
	Email          string
	PhoneNumber    string
	Country        string
	Postcode       string
	TownOrCity     string
	StreetAddress1 string
	StreetAddress2 string
	County         string
}
