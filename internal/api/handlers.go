package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"pricecollector/pkg/price"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

type dailyPoint struct {
	Date      price.Date `json:"date"`
	Price     float64    `json:"price_jpy"`
	CreatedAt time.Time  `json:"created_at"`
}

type dailyResponse struct {
	Symbol price.Asset  `json:"symbol"`
	From   price.Date   `json:"from"`
	To     price.Date   `json:"to"`
	Count  int          `json:"count"`
	Data   []dailyPoint `json:"data"`
}

type currentResponse struct {
	Symbol    price.Asset `json:"symbol,omitempty"`
	Price     float64     `json:"price_jpy"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeError(w, http.StatusNotFound, "Endpoint not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name": "XEM/XYM Price API",
		"endpoints": map[string]any{
			"GET /api/daily/{symbol}": map[string]any{
				"description": "Daily average JPY prices for XEM or XYM",
				"parameters": map[string]string{
					"symbol": "XEM or XYM",
					"from":   "Start date (YYYY-MM-DD)",
					"to":     "End date (YYYY-MM-DD)",
				},
				"example": "/api/daily/XEM?from=2024-01-01&to=2024-01-31",
			},
			"GET /api/current/{symbol}": map[string]any{
				"description": "Latest sampled price for XEM or XYM",
				"example":     "/api/current/XEM",
			},
			"GET /api/current":       map[string]string{"description": "Latest sampled prices for every asset"},
			"GET /api/current-cache": map[string]string{"description": "Latest snapshot from the cache file"},
			"GET /ws/current":        map[string]string{"description": "Websocket stream of new snapshots"},
			"GET /health":            map[string]string{"description": "Health check"},
			"GET /metrics":           map[string]string{"description": "Prometheus metrics"},
		},
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	asset, err := price.ParseAsset(mux.Vars(r)["symbol"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid symbol. Use XEM or XYM.")
		return
	}

	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" || toStr == "" {
		writeError(w, http.StatusBadRequest, "Both from and to date parameters are required. Format: YYYY-MM-DD")
		return
	}
	from, errFrom := price.ParseDate(fromStr)
	to, errTo := price.ParseDate(toStr)
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	prices, err := s.store.QueryDailyPrices(r.Context(), asset, from, to)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	resp := dailyResponse{Symbol: asset, From: from, To: to, Count: len(prices), Data: make([]dailyPoint, 0, len(prices))}
	for _, p := range prices {
		resp.Data = append(resp.Data, dailyPoint{Date: p.Date, Price: p.Price, CreatedAt: p.CreatedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	asset, err := price.ParseAsset(mux.Vars(r)["symbol"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid symbol. Use XEM or XYM.")
		return
	}

	obs, ok, err := s.store.LatestInstantPrice(r.Context(), asset)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No current price data found")
		return
	}

	writeJSON(w, http.StatusOK, currentResponse{Symbol: asset, Price: obs.Price, Timestamp: obs.Timestamp})
}

func (s *Server) handleCurrentAll(w http.ResponseWriter, r *http.Request) {
	resp := make(map[price.Asset]*currentResponse, len(price.Assets()))
	for _, asset := range price.Assets() {
		obs, ok, err := s.store.LatestInstantPrice(r.Context(), asset)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if !ok {
			resp[asset] = nil
			continue
		}
		resp[asset] = &currentResponse{Price: obs.Price, Timestamp: obs.Timestamp}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "Cache file not found")
		return
	}

	b, err := s.cache.Read()
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "Cache file not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !json.Valid(b) {
		s.internalError(w, r, errors.New("cache file is not valid json"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
