// File: internal/infra/web/server.go
package web

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/config"
	red "github.com/kamol666/finish/internal/infra/redis"
	"github.com/kamol666/finish/internal/payme"
	"github.com/kamol666/finish/internal/usecase"
)

// Server hosts the merchant webhook, the card lifecycle endpoints and the
// self-service cancellation link.
type Server struct {
	cfg    *config.Config
	http   *http.Server
	tokens *CancelTokens
	log    *zerolog.Logger
}

func NewServer(
	cfg *config.Config,
	merchantUC usecase.MerchantUseCase,
	cardUC usecase.CardUseCase,
	subUC usecase.SubscriptionUseCase,
	locker red.Locker,
	logger *zerolog.Logger,
) *Server {
	tokens := NewCancelTokens(cfg.Web.LinkSecret, cfg.Web.BaseURL)
	s := &Server{cfg: cfg, tokens: tokens, log: logger}

	merchant := newMerchantHandler(merchantUC, locker, cfg.Redis.LockTTL, logger)
	cards := newCardHandler(cardUC, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/payments/payme", func(r chi.Router) {
		r.Use(s.merchantAuth)
		r.Method(http.MethodPost, "/merchant", merchant)
	})

	r.Route("/cards/{provider}", func(r chi.Router) {
		r.Post("/token", cards.issueToken)
		r.Post("/verify", cards.verifyToken)
		r.Post("/resend", cards.resendCode)
		r.Delete("/", cards.remove)
	})

	r.Get("/subscriptions/cancel", s.handleCancel(subUC))

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Web.Port),
		Handler: r,
	}
	return s
}

// CancelLink mints the signed self-service link for a subscriber.
func (s *Server) CancelLink(subscriberID string) (string, error) {
	return s.tokens.Mint(subscriberID)
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("web server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// merchantAuth enforces the provider's Basic credentials. The protocol
// answers HTTP 200 with error -32504 rather than a 401.
func (s *Server) merchantAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r.Header.Get("Authorization")) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("merchant auth rejected")
			writeRPC(w, payme.Response{Error: payme.ErrInvalidAuthorization})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(header string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	login, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return false
	}
	cfg := s.cfg.Providers.Payme
	if subtle.ConstantTimeCompare([]byte(login), []byte(cfg.Login)) != 1 {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1 {
		return true
	}
	// Sandbox checks run against a second password.
	return cfg.TestPassword != "" &&
		subtle.ConstantTimeCompare([]byte(password), []byte(cfg.TestPassword)) == 1
}

func (s *Server) handleCancel(subUC usecase.SubscriptionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subscriberID, err := s.tokens.Verify(r.URL.Query().Get("token"))
		if err != nil {
			writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "error_code": "bad_token"})
			return
		}
		if err := subUC.CancelAll(r.Context(), subscriberID); err != nil {
			s.log.Error().Err(err).Str("subscriber_id", subscriberID).Msg("cancellation failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error_code": "internal"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
