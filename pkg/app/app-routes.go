package app

import "net/http"

// initRouter initializes the router of the App
func (s *App) initRouter() {
	s.router.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/transfers", s.TransferHandler).Methods(http.MethodPost)
	api.HandleFunc("/browse", s.BrowseHandler).Methods(http.MethodGet)
	api.HandleFunc("/shares", s.CreateShareHandler).Methods(http.MethodPost)
	api.HandleFunc("/shares/{code}", s.GetShareHandler).Methods(http.MethodGet)
	api.HandleFunc("/shares/{code}", s.RevokeShareHandler).Methods(http.MethodDelete)
	api.HandleFunc("/shares/{code}/download", s.RedeemShareHandler).Methods(http.MethodPost)
	api.HandleFunc("/history", s.HistoryHandler).Methods(http.MethodGet)
}
