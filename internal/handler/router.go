package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/bookstore-checkout/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса оформления заказов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(h.sessions.Middleware)
	r.Use(h.auth.Identify)

	r.Get("/bag", h.GetBag)
	r.Post("/bag/add", h.AddToBag)

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/", h.GetCheckout)
		r.Post("/", h.PostCheckout)
		r.Post("/cache-data", h.CacheCheckoutData)
		r.Get("/success/{orderNumber}", h.CheckoutSuccess)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
