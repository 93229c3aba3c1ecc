// Package service реализует бизнес-логику оформления заказов.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bookstore-checkout/internal/bag"
	"github.com/mmeshcher/bookstore-checkout/internal/model"
	"github.com/mmeshcher/bookstore-checkout/internal/payment"
	"github.com/mmeshcher/bookstore-checkout/internal/repository"
	"github.com/mmeshcher/bookstore-checkout/internal/sale"
	"github.com/mmeshcher/bookstore-checkout/internal/validation"
)

// ErrEmptyBag возвращается при попытке оформить заказ с пустой корзиной.
var (
	ErrEmptyBag = errors.New("bag is empty")
	// ErrInvalidClientSecret возвращается, если client_secret не содержит
	// идентификатора платёжного намерения.
	ErrInvalidClientSecret = errors.New("invalid client secret")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	GetActiveSales(ctx context.Context, today time.Time) ([]model.Sale, error)
	CreateOrderWithItems(ctx context.Context, order *model.Order, items []model.OrderLineItem) (string, bool, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	AttachProfileToOrder(ctx context.Context, orderID, profileID int64) error
	GetProfile(ctx context.Context, id int64) (*model.UserProfile, error)
	UpdateProfileAddress(ctx context.Context, profileID int64, addr model.DefaultAddress) error
}

// PaymentClient описывает контракт клиента платёжной системы.
type PaymentClient interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (*payment.Intent, error)
	ModifyIntentMetadata(ctx context.Context, id string, md payment.Metadata) error
}

// Pricing содержит параметры ценообразования и платёжной системы.
type Pricing struct {
	FreeDeliveryThreshold decimal.Decimal
	StandardDeliveryFee   decimal.Decimal
	Currency              string
	PublicKey             string
}

// Service содержит бизнес-логику оформления заказов.
type Service struct {
	repo     Repository
	payments PaymentClient
	pricing  Pricing
	now      func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом платёжной системы.
func NewService(repo Repository, payments PaymentClient, pricing Pricing) *Service {
	return &Service{
		repo:     repo,
		payments: payments,
		pricing:  pricing,
		now:      time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CheckoutPage содержит данные для страницы оформления заказа.
type CheckoutPage struct {
	Form         model.OrderForm
	Bag          *bag.Snapshot
	ClientSecret string
	PublicKey    string
	Warning      string
}

// Confirmation содержит данные подтверждения успешного заказа.
type Confirmation struct {
	OrderNumber string
	Email       string
}

// BagSnapshot рассчитывает снимок корзины с учётом действующих акций.
// Позиции с отсутствующими в каталоге товарами не включаются в снимок.
func (s *Service) BagSnapshot(ctx context.Context, b model.Bag) (*bag.Snapshot, error) {
	lines, err := s.pricedLines(ctx, b, false)
	if err != nil {
		return nil, err
	}
	return bag.Build(lines, s.pricing.FreeDeliveryThreshold, s.pricing.StandardDeliveryFee), nil
}

// AddToBag добавляет количество товара к корзине и возвращает обновлённую корзину.
func (s *Service) AddToBag(ctx context.Context, b model.Bag, productID int64, quantity int) (model.Bag, error) {
	products, err := s.repo.GetProductsByIDs(ctx, []int64{productID})
	if err != nil {
		return nil, err
	}
	if _, ok := products[productID]; !ok {
		return nil, fmt.Errorf("%w: id %d", repository.ErrProductNotFound, productID)
	}

	if b == nil {
		b = model.Bag{}
	}
	b[strconv.FormatInt(productID, 10)] += quantity

	return b, nil
}

// StartCheckout готовит страницу оформления: снимок корзины, платёжное
// намерение на общую сумму и предзаполненную форму для авторизованного
// покупателя.
func (s *Service) StartCheckout(ctx context.Context, b model.Bag, userID *int64) (*CheckoutPage, error) {
	if len(b) == 0 {
		return nil, ErrEmptyBag
	}

	snap, err := s.BagSnapshot(ctx, b)
	if err != nil {
		return nil, err
	}

	intent, err := s.payments.CreateIntent(ctx, bag.MinorUnits(snap.GrandTotal), s.pricing.Currency)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	page := &CheckoutPage{
		Bag:          snap,
		ClientSecret: intent.ClientSecret,
		PublicKey:    s.pricing.PublicKey,
	}

	if s.pricing.PublicKey == "" {
		page.Warning = "Stripe public key is missing. Did you forget to set it in your environment?"
	}

	if userID != nil {
		profile, err := s.repo.GetProfile(ctx, *userID)
		if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
			return nil, err
		}
		if err == nil {
			page.Form = model.OrderForm{
				FullName:       profile.FullName,
				Email:          profile.Email,
				PhoneNumber:    profile.PhoneNumber,
				Country:        profile.Country,
				Postcode:       profile.Postcode,
				TownOrCity:     profile.TownOrCity,
				StreetAddress1: profile.StreetAddress1,
				StreetAddress2: profile.StreetAddress2,
				County:         profile.County,
			}
		}
	}

	return page, nil
}

// SubmitCheckout создаёт заказ по валидной форме: оценивает корзину с учётом
// акций и сохраняет заказ со всеми позициями в одной транзакции. Возвращает
// номер заказа. Повторная отправка той же оплаты возвращает номер ранее
// созданного заказа.
func (s *Service) SubmitCheckout(ctx context.Context, b model.Bag, form model.OrderForm, clientSecret string) (string, error) {
	if len(b) == 0 {
		return "", ErrEmptyBag
	}

	pid := payment.IntentID(clientSecret)
	if pid == "" {
		return "", ErrInvalidClientSecret
	}

	lines, err := s.pricedLines(ctx, b, true)
	if err != nil {
		return "", err
	}

	snap := bag.Build(lines, s.pricing.FreeDeliveryThreshold, s.pricing.StandardDeliveryFee)

	originalBag, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode bag: %w", err)
	}

	order := &model.Order{
		OrderNumber:     newOrderNumber(),
		FullName:        form.FullName,
		Email:           form.Email,
		PhoneNumber:     form.PhoneNumber,
		Country:         form.Country,
		Postcode:        form.Postcode,
		TownOrCity:      form.TownOrCity,
		StreetAddress1:  form.StreetAddress1,
		StreetAddress2:  form.StreetAddress2,
		County:          form.County,
		PaymentIntentID: pid,
		OriginalBag:     string(originalBag),
		DeliveryCost:    snap.Delivery,
		OrderTotal:      snap.Subtotal,
		GrandTotal:      snap.GrandTotal,
	}

	items := make([]model.OrderLineItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, model.OrderLineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}

	number, _, err := s.repo.CreateOrderWithItems(ctx, order, items)
	if err != nil {
		return "", err
	}

	return number, nil
}

// CacheCheckoutData синхронизирует метаданные платёжного намерения с текущим
// состоянием сессии: сериализованной корзиной, флагом save_info и именем покупателя.
func (s *Service) CacheCheckoutData(ctx context.Context, clientSecret string, b model.Bag, saveInfo bool, userID *int64) error {
	pid := payment.IntentID(clientSecret)
	if pid == "" {
		return ErrInvalidClientSecret
	}

	username := ""
	if userID != nil {
		profile, err := s.repo.GetProfile(ctx, *userID)
		if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
			return err
		}
		if err == nil {
			username = profile.Username
		}
	}

	rawBag, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bag: %w", err)
	}

	return s.payments.ModifyIntentMetadata(ctx, pid, payment.Metadata{
		Bag:      string(rawBag),
		SaveInfo: strconv.FormatBool(saveInfo),
		Username: username,
	})
}

// FinalizeSuccess обрабатывает успешную оплату: находит заказ по номеру,
// привязывает профиль авторизованного покупателя и по желанию сохраняет
// адрес заказа как адрес профиля по умолчанию. Невалидный адрес молча
// пропускается.
func (s *Service) FinalizeSuccess(ctx context.Context, orderNumber string, userID *int64, saveInfo bool) (*Confirmation, error) {
	order, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if userID != nil {
		profile, err := s.repo.GetProfile(ctx, *userID)
		if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
			return nil, err
		}
		if err == nil {
			if err := s.repo.AttachProfileToOrder(ctx, order.ID, profile.ID); err != nil {
				return nil, err
			}

			if saveInfo {
				addr := model.DefaultAddress{
					PhoneNumber:    order.PhoneNumber,
					Country:        order.Country,
					Postcode:       order.Postcode,
					TownOrCity:     order.TownOrCity,
					StreetAddress1: order.StreetAddress1,
					StreetAddress2: order.StreetAddress2,
					County:         order.County,
				}
				if validation.IsValidProfileAddress(addr) {
					if err := s.repo.UpdateProfileAddress(ctx, profile.ID, addr); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return &Confirmation{
		OrderNumber: order.OrderNumber,
		Email:       order.Email,
	}, nil
}

// pricedLines оценивает строки корзины по каталогу с учётом активной акции.
// В строгом режиме отсутствующий товар приводит к ошибке ErrProductNotFound,
// иначе такие строки пропускаются.
func (s *Service) pricedLines(ctx context.Context, b model.Bag, strict bool) ([]bag.Line, error) {
	ids := make([]int64, 0, len(b))
	quantities := make(map[int64]int, len(b))

	for key, qty := range b {
		if qty <= 0 {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("%w: bad id %q", repository.ErrProductNotFound, key)
			}
			continue
		}
		ids = append(ids, id)
		quantities[id] += qty
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.GetActiveSales(ctx, s.now())
	if err != nil {
		return nil, err
	}
	resolver := sale.NewResolver(sales, s.now())

	lines := make([]bag.Line, 0, len(ids))
	for id, qty := range quantities {
		product, ok := products[id]
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: id %d", repository.ErrProductNotFound, id)
			}
			continue
		}

		lines = append(lines, bag.Line{
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  qty,
			UnitPrice: resolver.UnitPrice(product.ID, product.Price),
		})
	}

	return lines, nil
}

func newOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
