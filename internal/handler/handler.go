// Package handler содержит HTTP-обработчики оформления заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/bookstore-checkout/internal/bag"
	"github.com/mmeshcher/bookstore-checkout/internal/middleware"
	"github.com/mmeshcher/bookstore-checkout/internal/model"
	"github.com/mmeshcher/bookstore-checkout/internal/repository"
	"github.com/mmeshcher/bookstore-checkout/internal/service"
	"github.com/mmeshcher/bookstore-checkout/internal/session"
	"github.com/mmeshcher/bookstore-checkout/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	BagSnapshot(ctx context.Context, b model.Bag) (*bag.Snapshot, error)
	AddToBag(ctx context.Context, b model.Bag, productID int64, quantity int) (model.Bag, error)
	StartCheckout(ctx context.Context, b model.Bag, userID *int64) (*service.CheckoutPage, error)
	SubmitCheckout(ctx context.Context, b model.Bag, form model.OrderForm, clientSecret string) (string, error)
	CacheCheckoutData(ctx context.Context, clientSecret string, b model.Bag, saveInfo bool, userID *int64) error
	FinalizeSuccess(ctx context.Context, orderNumber string, userID *int64, saveInfo bool) (*service.Confirmation, error)
}

// SessionStore определяет контракт сессионного состояния покупателя,
// загружаемого и сохраняемого на границе HTTP.
type SessionStore interface {
	Bag(ctx context.Context, sid string) (model.Bag, error)
	SaveBag(ctx context.Context, sid string, b model.Bag) error
	ClearBag(ctx context.Context, sid string) error
	SetSaveInfo(ctx context.Context, sid string, v bool) error
	SaveInfo(ctx context.Context, sid string) (bool, error)
	ClearSaveInfo(ctx context.Context, sid string) error
	AddMessage(ctx context.Context, sid, level, text string) error
	PopMessages(ctx context.Context, sid string) ([]session.Message, error)
}

// Handler реализует HTTP-обработчики оформления заказов.
type Handler struct {
	service  Service
	store    SessionStore
	logger   *zap.Logger
	sessions *middleware.Sessions
	auth     *middleware.Auth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, store SessionStore, logger *zap.Logger, sessions *middleware.Sessions, auth *middleware.Auth) *Handler {
	return &Handler{
		service:  s,
		store:    store,
		logger:   logger,
		sessions: sessions,
		auth:     auth,
	}
}

// Тексты сообщений для покупателя.
const (
	msgEmptyBag       = "There's nothing in your bag at the moment"
	msgFormError      = "There was an error with your form. Please double check your information."
	msgProductMissing = "One of the products in your basket wasn't found in our database. Please call us for assistance!"
	msgPaymentError   = "Sorry, your payment cannot be processed right now. Please try again later."
)

type bagResponse struct {
	*bag.Snapshot
	Messages []session.Message `json:"messages,omitempty"`
}

// GetBag возвращает снимок корзины текущей сессии вместе с накопленными сообщениями.
func (h *Handler) GetBag(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	b, err := h.store.Bag(r.Context(), sid)
	if err != nil {
		h.logger.Error("load bag error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	snap, err := h.service.BagSnapshot(r.Context(), b)
	if err != nil {
		h.logger.Error("bag snapshot error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	msgs, err := h.store.PopMessages(r.Context(), sid)
	if err != nil {
		h.logger.Error("pop messages error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, bagResponse{Snapshot: snap, Messages: msgs})
}

type addToBagRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddToBag добавляет товар в корзину текущей сессии.
func (h *Handler) AddToBag(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req addToBagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.ProductID <= 0 || req.Quantity <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.store.Bag(r.Context(), sid)
	if err != nil {
		h.logger.Error("load bag error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	b, err = h.service.AddToBag(r.Context(), b, req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("add to bag error", zap.Error(err), zap.Int64("productID", req.ProductID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.store.SaveBag(r.Context(), sid, b); err != nil {
		h.logger.Error("save bag error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	snap, err := h.service.BagSnapshot(r.Context(), b)
	if err != nil {
		h.logger.Error("bag snapshot error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, snap)
}

type orderFormPayload struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Country        string `json:"country"`
	Postcode       string `json:"postcode"`
	TownOrCity     string `json:"town_or_city"`
	StreetAddress1 string `json:"street_address1"`
	StreetAddress2 string `json:"street_address2"`
	County         string `json:"county"`
}

type checkoutPageResponse struct {
	OrderForm       orderFormPayload  `json:"order_form"`
	Bag             *bag.Snapshot     `json:"bag"`
	ClientSecret    string            `json:"client_secret"`
	StripePublicKey string            `json:"stripe_public_key"`
	Warning         string            `json:"warning,omitempty"`
	Messages        []session.Message `json:"messages,omitempty"`
}

// GetCheckout готовит страницу оформления заказа: создаёт платёжное намерение
// на сумму корзины и предзаполняет форму. Пустая корзина возвращает
// покупателя к корзине с сообщением.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	b, err := h.store.Bag(r.Context(), sid)
	if err != nil {
		h.logger.Error("load bag error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	page, err := h.service.StartCheckout(r.Context(), b, userIDPtr(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrEmptyBag) {
			h.flashAndRedirect(w, r, sid, session.LevelError, msgEmptyBag, "/bag")
			return
		}
		h.logger.Error("start checkout error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if page.Warning != "" {
		h.logger.Warn("stripe public key is not set")
	}

	h.writeJSON(w, checkoutPageResponse{
		OrderForm:       formPayload(page.Form),
		Bag:             page.Bag,
		ClientSecret:    page.ClientSecret,
		StripePublicKey: page.PublicKey,
		Warning:         page.Warning,
	})
}

// PostCheckout принимает форму заказа: валидирует поля, создаёт заказ со
// всеми позициями и перенаправляет на страницу подтверждения. Отсутствующий
// в каталоге товар возвращает покупателя к корзине, заказ не сохраняется.
func (h *Handler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	clientSecret := r.PostFormValue("client_secret")
	if clientSecret == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := model.OrderForm{
		FullName:       r.PostFormValue("full_name"),
		Email:          r.PostFormValue("email"),
		PhoneNumber:    r.PostFormValue("phone_number"),
		Country:        r.PostFormValue("country"),
		Postcode:       r.PostFormValue("postcode"),
		TownOrCity:     r.PostFormValue("town_or_city"),
		StreetAddress1: r.PostFormValue("street_address1"),
		StreetAddress2: r.PostFormValue("street_address2"),
		County:         r.PostFormValue("county"),
	}

	if fieldErrs := validation.ValidateOrderForm(form); fieldErrs != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(map[string]any{
			"message": msgFormError,
			"errors":  fieldErrs,
		}); err != nil {
			h.logger.Error("encode response error", zap.Error(err))
		}
		return
	}

	b, err := h.store.Bag(r.Context(), sid)
	if err != nil {
		h.logger.Error("load bag error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	number, err := h.service.SubmitCheckout(r.Context(), b, form, clientSecret)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			h.flashAndRedirect(w, r, sid, session.LevelError, msgProductMissing, "/bag")
		case errors.Is(err, service.ErrEmptyBag):
			h.flashAndRedirect(w, r, sid, session.LevelError, msgEmptyBag, "/bag")
		case errors.Is(err, service.ErrInvalidClientSecret):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("submit checkout error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	saveInfo := r.PostFormValue("save_info") != ""
	if err := h.store.SetSaveInfo(r.Context(), sid, saveInfo); err != nil {
		h.logger.Error("set save_info error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/checkout/success/"+number, http.StatusSeeOther)
}

// CacheCheckoutData синхронизирует метаданные платёжного намерения с
// состоянием сессии перед подтверждением оплаты. Ошибка платёжной системы
// возвращается покупателю, состояние не меняется.
func (h *Handler) CacheCheckoutData(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.store.Bag(r.Context(), sid)
	if err != nil {
		h.logger.Error("load bag error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	saveInfoRaw := r.PostFormValue("save_info")
	saveInfo := saveInfoRaw == "true" || saveInfoRaw == "on" || saveInfoRaw == "1"

	err = h.service.CacheCheckoutData(r.Context(), r.PostFormValue("client_secret"), b, saveInfo, userIDPtr(r.Context()))
	if err != nil {
		h.logger.Error("cache checkout data error", zap.Error(err))
		http.Error(w, msgPaymentError, http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type confirmationResponse struct {
	OrderNumber string            `json:"order_number"`
	Email       string            `json:"email"`
	Message     string            `json:"message"`
	Messages    []session.Message `json:"messages,omitempty"`
}

// CheckoutSuccess завершает успешно оплаченный заказ: привязывает профиль,
// по желанию сохраняет адрес и очищает корзину сессии. Неизвестный номер
// заказа возвращает 404, сессия при этом не изменяется.
func (h *Handler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	sid, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	orderNumber := chi.URLParam(r, "orderNumber")

	saveInfo, err := h.store.SaveInfo(r.Context(), sid)
	if err != nil {
		h.logger.Error("load save_info error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	conf, err := h.service.FinalizeSuccess(r.Context(), orderNumber, userIDPtr(r.Context()), saveInfo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("finalize success error", zap.Error(err), zap.String("order", orderNumber))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.store.ClearBag(r.Context(), sid); err != nil {
		h.logger.Error("clear bag error", zap.Error(err))
	}
	if err := h.store.ClearSaveInfo(r.Context(), sid); err != nil {
		h.logger.Error("clear save_info error", zap.Error(err))
	}

	msgs, err := h.store.PopMessages(r.Context(), sid)
	if err != nil {
		h.logger.Error("pop messages error", zap.Error(err))
	}

	h.writeJSON(w, confirmationResponse{
		OrderNumber: conf.OrderNumber,
		Email:       conf.Email,
		Message: "Order successfully processed! Your order number is " + conf.OrderNumber +
			". A confirmation email will be sent to " + conf.Email + ".",
		Messages: msgs,
	})
}

func (h *Handler) flashAndRedirect(w http.ResponseWriter, r *http.Request, sid, level, text, location string) {
	if err := h.store.AddMessage(r.Context(), sid, level, text); err != nil {
		h.logger.Error("add message error", zap.Error(err))
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func formPayload(f model.OrderForm) orderFormPayload {
	return orderFormPayload{
		FullName:       f.FullName,
		Email:          f.Email,
		PhoneNumber:    f.PhoneNumber,
		Country:        f.Country,
		Postcode:       f.Postcode,
		TownOrCity:     f.TownOrCity,
		StreetAddress1: f.StreetAddress1,
		StreetAddress2: f.StreetAddress2,
		County:         f.County,
	}
}

func userIDPtr(ctx context.Context) *int64 {
	if id, ok := middleware.GetUserIDFromContext(ctx); ok {
		return &id
	}
	return nil
}
