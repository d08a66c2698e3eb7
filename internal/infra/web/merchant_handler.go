// File: internal/infra/web/merchant_handler.go
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/infra/metrics"
	red "github.com/kamol666/finish/internal/infra/redis"
	"github.com/kamol666/finish/internal/payme"
	"github.com/kamol666/finish/internal/usecase"
)

// merchantHandler translates the provider's JSON-RPC envelope into state
// machine calls and shapes the results back onto the wire. Whatever goes
// wrong, the HTTP status is always 200; the protocol speaks through the
// error object.
type merchantHandler struct {
	uc      usecase.MerchantUseCase
	locker  red.Locker
	lockTTL time.Duration
	log     *zerolog.Logger
}

func newMerchantHandler(uc usecase.MerchantUseCase, locker red.Locker, lockTTL time.Duration, logger *zerolog.Logger) *merchantHandler {
	return &merchantHandler{uc: uc, locker: locker, lockTTL: lockTTL, log: logger}
}

func (h *merchantHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req payme.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, payme.Response{Error: payme.ErrInternal})
		return
	}

	start := time.Now()
	resp := h.dispatch(r.Context(), &req)
	resp.ID = req.ID

	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
	}
	metrics.IncMerchantRequest(req.Method, outcome)
	metrics.ObserveMerchantLatency(req.Method, float64(time.Since(start).Milliseconds()))

	writeRPC(w, resp)
}

func (h *merchantHandler) dispatch(ctx context.Context, req *payme.Request) payme.Response {
	// Transaction methods are serialized per correlation id so a replayed
	// delivery waits for the first one instead of racing it.
	if transID := req.Params.ID; transID != "" {
		key := red.TransactionLockKey(transID)
		token, err := h.locker.TryLock(ctx, key, h.lockTTL)
		if err != nil {
			h.log.Warn().Str("trans_id", transID).Msg("merchant lock not acquired")
			return payme.Response{Error: payme.ErrTransactionInProcess}
		}
		defer func() {
			if uerr := h.locker.Unlock(ctx, key, token); uerr != nil {
				h.log.Warn().Err(uerr).Str("trans_id", transID).Msg("merchant lock release failed")
			}
		}()
	}

	switch req.Method {
	case payme.MethodCheckPerformTransaction:
		return h.checkPerform(ctx, req)
	case payme.MethodCreateTransaction:
		return h.create(ctx, req)
	case payme.MethodPerformTransaction:
		return h.perform(ctx, req)
	case payme.MethodCancelTransaction:
		return h.cancel(ctx, req)
	case payme.MethodCheckTransaction:
		return h.check(ctx, req)
	case payme.MethodGetStatement:
		return h.statement(ctx, req)
	default:
		return payme.Response{Error: payme.ErrInternal}
	}
}

// asRPCError maps a usecase failure to the protocol error object. Anything
// that is not already a *payme.Error is an internal fault and must not leak.
func (h *merchantHandler) asRPCError(err error) *payme.Error {
	var perr *payme.Error
	if errors.As(err, &perr) {
		return perr
	}
	h.log.Error().Err(err).Msg("merchant internal error")
	return payme.ErrInternal
}

func (h *merchantHandler) checkPerform(ctx context.Context, req *payme.Request) payme.Response {
	err := h.uc.CheckPerform(ctx, req.Params.Account.PlanID, req.Params.Account.UserID, req.Params.Amount)
	if err != nil {
		return payme.Response{Error: h.asRPCError(err)}
	}
	return payme.Response{Result: payme.CheckPerformResult{Allow: true}}
}

func (h *merchantHandler) create(ctx context.Context, req *payme.Request) payme.Response {
	t, err := h.uc.Create(ctx, req.Params.ID, req.Params.Account.PlanID, req.Params.Account.UserID, req.Params.Amount)
	if err != nil {
		return payme.Response{Error: h.asRPCError(err)}
	}
	return payme.Response{Result: payme.CreateResult{
		Transaction: t.ID,
		State:       t.State,
		CreateTime:  t.CreatedAt.UnixMilli(),
	}}
}

func (h *merchantHandler) perform(ctx context.Context, req *payme.Request) payme.Response {
	t, err := h.uc.Perform(ctx, req.Params.ID)
	if err != nil {
		return payme.Response{Error: h.asRPCError(err)}
	}
	metrics.IncTransaction(string(t.Provider), string(t.Status))
	metrics.AddRevenue(string(t.Provider), t.Amount)
	return payme.Response{Result: payme.PerformResult{
		Transaction: t.ID,
		State:       t.State,
		PerformTime: payme.Millis(t.PerformTime),
	}}
}

func (h *merchantHandler) cancel(ctx context.Context, req *payme.Request) payme.Response {
	reason := model.ReasonUnknown
	if req.Params.Reason != nil {
		reason = model.CancelReason(*req.Params.Reason)
	}
	t, err := h.uc.Cancel(ctx, req.Params.ID, reason)
	if err != nil {
		return payme.Response{Error: h.asRPCError(err)}
	}
	metrics.IncTransaction(string(t.Provider), string(t.Status))
	return payme.Response{Result: payme.CancelResult{
		Transaction: t.ID,
		State:       t.State,
		CancelTime:  payme.Millis(t.CancelTime),
	}}
}

func (h *merchantHandler) check(ctx context.Context, req *payme.Request) payme.Response {
	t, err := h.uc.Check(ctx, req.Params.ID)
	if err != nil {
		return payme.Response{Error: h.asRPCError(err)}
	}
	return payme.Response{Result: payme.CheckResult{
		Transaction: t.ID,
		State:       t.State,
		CreateTime:  t.CreatedAt.UnixMilli(),
		PerformTime: payme.Millis(t.PerformTime),
		CancelTime:  payme.Millis(t.CancelTime),
		Reason:      t.Reason,
	}}
}

func (h *merchantHandler) statement(ctx context.Context, req *payme.Request) payme.Response {
	from := time.UnixMilli(req.Params.From)
	to := time.UnixMilli(req.Params.To)
	list, err := h.uc.Statement(ctx, model.ProviderPayme, from, to)
	if err != nil {
		return payme.Response{Error: h.asRPCError(err)}
	}
	entries := make([]payme.StatementEntry, 0, len(list))
	for _, t := range list {
		entries = append(entries, payme.StatementEntry{
			ID:          t.TransID,
			Time:        t.CreatedAt.UnixMilli(),
			Amount:      t.Amount,
			Account:     payme.Account{PlanID: t.PlanID, UserID: t.SubscriberID},
			CreateTime:  t.CreatedAt.UnixMilli(),
			PerformTime: payme.Millis(t.PerformTime),
			CancelTime:  payme.Millis(t.CancelTime),
			Transaction: t.ID,
			State:       t.State,
			Reason:      t.Reason,
		})
	}
	return payme.Response{Result: payme.StatementResult{Transactions: entries}}
}

func writeRPC(w http.ResponseWriter, resp payme.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
