package http

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"kioskops-backend/internal/metrics"
	"kioskops-backend/internal/service"
)

// NewRouter wires every endpoint. The identity middleware guards the API
// routes; health and metrics stay open for the platform.
func NewRouter(orders service.OrderService, rentals service.RentalService, db *sql.DB) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", healthHandler(db)).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(actorMiddleware)

	oh := NewOrderHandler(orders)
	api.HandleFunc("/orders", oh.CreateOrder).Methods("POST")
	api.HandleFunc("/orders", oh.ListOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", oh.GetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/status", oh.UpdateStatus).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", oh.Cancel).Methods("POST")

	rh := NewRentalHandler(rentals)
	api.HandleFunc("/rentals", rh.CreateBooking).Methods("POST")
	api.HandleFunc("/rentals", rh.ListBookings).Methods("GET")
	api.HandleFunc("/rentals/{id}", rh.GetBooking).Methods("GET")
	api.HandleFunc("/rentals/{id}/pickup", rh.ConfirmPickup).Methods("POST")
	api.HandleFunc("/rentals/{id}/return", rh.ConfirmReturn).Methods("POST")
	api.HandleFunc("/rentals/{id}/cancel", rh.Cancel).Methods("POST")

	return router
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
