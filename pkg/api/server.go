// Package api serves the REST and WebSocket surface of the node. It is a
// read view plus a mempool drop box: every mutation goes through POST
// /api/v1/tx into the mempool and takes effect only when a block commits.
package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tokendex/tokendex/pkg/app/core/asset"
	"github.com/tokendex/tokendex/pkg/app/core/exchange"
	"github.com/tokendex/tokendex/pkg/app/core/token"
	"github.com/tokendex/tokendex/pkg/app/dex"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	app      *dex.App
	registry *token.Registry
	router   *mux.Router
	hub      *Hub
}

func NewServer(app *dex.App, registry *token.Registry) *Server {
	s := &Server{
		app:      app,
		registry: registry,
		router:   mux.NewRouter(),
		hub:      NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Asset and balance endpoints
	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances", s.handleGetAccountBalances).Methods("GET")
	api.HandleFunc("/balances/{asset}/{address}", s.handleGetBalance).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	// Transaction submission
	api.HandleFunc("/tx", s.handleSubmitTx).Methods("POST")

	// Chain endpoints
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server and blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// Sink returns an event sink that broadcasts every committed exchange
// event to WebSocket subscribers. Wire it into the exchange at setup.
func (s *Server) Sink() exchange.Sink {
	return exchange.SinkFunc(func(ev exchange.Event) {
		s.hub.BroadcastToChannel("events", WSEvent{Channel: "events", Kind: ev.Kind(), Data: ev})
		if ev.Kind() == "trade" {
			s.hub.BroadcastToChannel("trades", WSEvent{Channel: "trades", Kind: ev.Kind(), Data: ev})
		}
	})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	ex := s.app.Exchange()

	out := []AssetInfo{{
		Asset: asset.Native().String(),
		Total: ex.TotalOf(asset.Native()),
	}}

	for _, addr := range s.registry.Addresses() {
		info := AssetInfo{
			Asset: asset.ForToken(addr).String(),
			Total: ex.TotalOf(asset.ForToken(addr)),
		}
		if ledger, ok := s.registry.Ledger(addr); ok {
			if tok, ok := ledger.(*token.Token); ok {
				info.Name = tok.Name
				info.Symbol = tok.Symbol
				info.Decimals = tok.Decimals
			}
		}
		out = append(out, info)
	}

	respondJSON(w, out)
}

func (s *Server) handleGetAccountBalances(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addressStr)

	balances := s.app.Exchange().BalancesOf(addr)
	out := make([]BalanceInfo, 0, len(balances))
	for a, amt := range balances {
		out = append(out, BalanceInfo{Asset: a.String(), Balance: amt})
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	a, err := asset.Parse(vars["asset"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset", err.Error())
		return
	}
	if !common.IsHexAddress(vars["address"]) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(vars["address"])

	respondJSON(w, BalanceInfo{
		Asset:   a.String(),
		Balance: s.app.Exchange().BalanceOf(a, addr),
	})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	ex := s.app.Exchange()

	var orders []*exchange.Order
	if r.URL.Query().Get("status") == "open" {
		orders = ex.OpenOrders()
	} else {
		orders = ex.ListOrders()
	}

	out := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		_, st, err := ex.GetOrder(o.ID)
		if err != nil {
			continue
		}
		out = append(out, orderInfo(o, st))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	order, st, err := s.app.Exchange().GetOrder(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", err.Error())
		return
	}
	respondJSON(w, orderInfo(order, st))
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	if err := s.app.SubmitTx(body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction", err.Error())
		return
	}

	log.Printf("[api] tx submitted: bytes=%d", len(body))
	respondJSON(w, SubmitTxResponse{Status: "submitted"})
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	ex := s.app.Exchange()
	hash := s.app.LastAppHash()

	respondJSON(w, ChainStatus{
		Height:      s.app.LastHeight(),
		AppHash:     common.Bytes2Hex(hash[:]),
		MempoolSize: s.app.Mempool().Len(),
		FeeAccount:  ex.FeeAccount().Hex(),
		FeePercent:  ex.FeePercent(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func orderInfo(o *exchange.Order, st exchange.OrderStatus) OrderInfo {
	return OrderInfo{
		ID:            o.ID,
		Creator:       o.Creator.Hex(),
		AssetWanted:   o.AssetWanted.String(),
		AmountWanted:  o.AmountWanted,
		AssetOffered:  o.AssetOffered.String(),
		AmountOffered: o.AmountOffered,
		CreatedAt:     o.CreatedAt,
		Filled:        st.Filled,
		Cancelled:     st.Cancelled,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
