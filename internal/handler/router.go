package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/loyalty-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware платформы лояльности.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Put("/user/push-token", h.UpdatePushToken)
			r.Get("/user/favorite-stores", h.GetFavoriteStores)
			r.Post("/user/favorite-stores/{storeID}", h.AddFavoriteStore)
			r.Delete("/user/favorite-stores/{storeID}", h.RemoveFavoriteStore)

			r.Post("/receipts/scan", h.ScanReceipt)

			r.Get("/points", h.GetPoints)
			r.Post("/points/use", h.UsePoints)

			r.Get("/offers", h.GetOffers)
			r.Post("/offers/generate", h.GenerateOffers)
			r.Post("/offers/{offerID}/claim", h.ClaimOffer)

			r.Get("/promotions", h.ListPromotions)

			r.Post("/review-requests", h.SubmitReviewRequest)
			r.Get("/products/{productID}", h.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.RequireAdmin)

				r.Get("/review-requests", h.ListReviewRequests)
				r.Get("/review-requests/{productID}/transactions", h.GetProductTransactions)
				r.Post("/review-requests/{productID}/decision", h.DecideReviewRequests)

				r.Patch("/products/{productID}", h.UpdateProduct)

				r.Post("/promotions", h.CreatePromotion)
				r.Post("/promotions/{promotionID}/offers", h.GenerateOffersForPromotion)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
