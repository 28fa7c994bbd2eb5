package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Reserve             http.HandlerFunc
	ConfirmWithdrawal   http.HandlerFunc
	ReturnBattery       http.HandlerFunc
	ChargeComplete      http.HandlerFunc
	CancelReservation   http.HandlerFunc
	FlagMaintenance     http.HandlerFunc
	CompleteMaintenance http.HandlerFunc
	Snapshot            http.HandlerFunc
	Rollup              http.HandlerFunc
	ActiveAlerts        http.HandlerFunc
	Search              http.HandlerFunc
	AlertStream         http.HandlerFunc
	Health              http.HandlerFunc
}

// NewRouter registers endpoints. auth wraps everything except /health.
func NewRouter(routes Routes, auth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	register := func(path, verb string, handler http.HandlerFunc) {
		if handler == nil {
			return
		}
		var h http.Handler = method(verb, handler)
		if auth != nil {
			h = auth(h)
		}
		mux.Handle(path, h)
	}

	register("/swap/reserve", http.MethodPost, routes.Reserve)
	register("/swap/confirm", http.MethodPost, routes.ConfirmWithdrawal)
	register("/swap/return", http.MethodPost, routes.ReturnBattery)
	register("/swap/charge-complete", http.MethodPost, routes.ChargeComplete)
	register("/swap/cancel", http.MethodPost, routes.CancelReservation)
	register("/maintenance/flag", http.MethodPost, routes.FlagMaintenance)
	register("/maintenance/complete", http.MethodPost, routes.CompleteMaintenance)
	register("/stations/snapshot", http.MethodGet, routes.Snapshot)
	register("/stations/rollup", http.MethodGet, routes.Rollup)
	register("/stations/alerts", http.MethodGet, routes.ActiveAlerts)
	register("/stations/search", http.MethodGet, routes.Search)
	register("/alerts/stream", http.MethodGet, routes.AlertStream)

	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
