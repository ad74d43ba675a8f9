package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ringihq/ringi/internal/ledger"
)

func handleDashboard(gateway ledger.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg, err := gateway.Dashboard(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, agg)
	}
}

func handleClosingRun(gateway ledger.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := chi.URLParam(r, "period")

		report, err := gateway.CloseMonth(r.Context(), period)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}

func handleClosingReport(gateway ledger.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := chi.URLParam(r, "period")

		report, err := gateway.Report(r.Context(), period)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}
