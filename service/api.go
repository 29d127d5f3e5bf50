package service

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/keyring"
	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// AccountResponse is a raw ledger account.
type AccountResponse struct {
	Address types.Pubkey `json:"address"`
	Owner   types.Pubkey `json:"owner"`
	Data    string       `json:"data"`
}

// QueuedRequestResponse is a pending oracle request.
type QueuedRequestResponse struct {
	ID                    string              `json:"id"`
	Payer                 types.Pubkey        `json:"payer"`
	CallbackProgramID     types.Pubkey        `json:"callback_program_id"`
	CallbackDiscriminator string              `json:"callback_discriminator"`
	CallerSeed            string              `json:"caller_seed"`
	Accounts              []types.AccountMeta `json:"accounts"`
	RequestedAt           time.Time           `json:"requested_at"`
}

// RequestRandomnessBody is the body of a randomness request.
type RequestRandomnessBody struct {
	ClientSeed *uint8 `json:"client_seed"`
}

// FulfillResponse reports a fulfillment scan.
type FulfillResponse struct {
	Fulfilled int `json:"fulfilled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type apiHandler struct {
	app    *VrfConsumerApp
	logger *zap.Logger
}

// NewAPIRouter returns the HTTP API of app.
func NewAPIRouter(app *VrfConsumerApp, logger *zap.Logger) http.Handler {
	h := &apiHandler{app: app, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.logRequests)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "resource not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.Get("/healthz", h.healthz)
	r.Get("/accounts/{address}", h.getAccount)
	r.Route("/users", func(r chi.Router) {
		r.Get("/{user}/account", h.getUserAccount)
		r.Post("/{name}/randomness", h.requestRandomness)
	})
	r.Route("/queue", func(r chi.Router) {
		r.Get("/", h.listQueue)
		r.Post("/fulfill", h.fulfill)
	})

	return r
}

func (h *apiHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.logger.Debug("served API request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

func (h *apiHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := types.NewPubkeyFromBase58(chi.URLParam(r, "address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	acc, err := h.app.GetAccount(addr)
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		Address: acc.Address,
		Owner:   acc.Owner,
		Data:    hex.EncodeToString(acc.Data),
	})
}

func (h *apiHandler) getUserAccount(w http.ResponseWriter, r *http.Request) {
	user, err := types.NewPubkeyFromBase58(chi.URLParam(r, "user"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	info, err := h.app.GetUserAccount(user)
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h *apiHandler) requestRandomness(w http.ResponseWriter, r *http.Request) {
	var body RequestRandomnessBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})

		return
	}
	if body.ClientSeed == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "client_seed is required"})

		return
	}

	res, err := h.app.RequestRandomness(r.Context(), chi.URLParam(r, "name"), *body.ClientSeed)
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusAccepted, res)
}

func (h *apiHandler) listQueue(w http.ResponseWriter, _ *http.Request) {
	pending, err := h.app.PendingRequests()
	if err != nil {
		h.writeError(w, err)

		return
	}

	res := make([]QueuedRequestResponse, 0, len(pending))
	for _, q := range pending {
		res = append(res, NewQueuedRequestResponse(q))
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) fulfill(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.FulfillPending(r.Context())
	if err != nil {
		h.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, FulfillResponse{Fulfilled: n})
}

func NewQueuedRequestResponse(q *vrf.QueuedRequest) QueuedRequestResponse {
	return QueuedRequestResponse{
		ID:                    q.ID.String(),
		Payer:                 q.Request.Payer,
		CallbackProgramID:     q.Request.CallbackProgramID,
		CallbackDiscriminator: hex.EncodeToString(q.Request.CallbackDiscriminator),
		CallerSeed:            hex.EncodeToString(q.Request.CallerSeed[:]),
		Accounts:              q.Request.AccountsMetas,
		RequestedAt:           time.UnixMilli(int64(q.ID.Time())).UTC(),
	}
}

func (h *apiHandler) writeError(w http.ResponseWriter, err error) {
	var coded interface{ ABCICode() uint32 }

	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ErrUserAccountNotFound),
		errors.Is(err, keyring.ErrKeyNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &coded):
		// rejected by a program or the runtime
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("API request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
