//go:build !integration

package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kamol666/finish/internal/config"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

func newUzcardTestProvider(srv *httptest.Server) *UzcardProvider {
	return NewUzcardProvider(config.UzcardConfig{
		BaseURL:  srv.URL,
		Login:    "merchant",
		Password: "secret",
	})
}

func TestUzcardIssueToken(t *testing.T) {
	var gotAuth, gotLang, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLang = r.Header.Get("Language")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"session": "sess-9", "otpSentPhone": "+99890*****11"},
		})
	}))
	defer srv.Close()

	p := newUzcardTestProvider(srv)
	session, err := p.IssueToken(context.Background(), adapter.TokenRequest{
		SubscriberID: "sub-1",
		CardNumber:   "8600123412341234",
		Expiry:       "1230",
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if session.Session != "sess-9" || session.OTPSentPhone != "+99890*****11" {
		t.Errorf("unexpected session %+v", session)
	}
	if gotPath != "/UserCard/createUserCard" {
		t.Errorf("unexpected path %q", gotPath)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("merchant:secret"))
	if gotAuth != wantAuth {
		t.Errorf("unexpected Authorization %q", gotAuth)
	}
	if gotLang != "uz" {
		t.Errorf("unexpected Language %q", gotLang)
	}
}

func TestUzcardVerifyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["isTrusted"] != float64(1) {
			t.Errorf("expected isTrusted 1, got %v", body["isTrusted"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"card": map[string]any{
					"id":         4242,
					"cardId":     "tok-42",
					"number":     "860012******1234",
					"owner":      "J DOE",
					"isTrusted":  true,
					"balance":    1500000,
					"expireDate": "1230",
				},
			},
		})
	}))
	defer srv.Close()

	p := newUzcardTestProvider(srv)
	info, err := p.VerifyToken(context.Background(), "sess-9", "123456")
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if info.Token != "tok-42" || info.MaskedPAN != "860012******1234" {
		t.Errorf("unexpected card info %+v", info)
	}
	if info.Uzcard == nil || info.Uzcard.DeleteID != "4242" {
		t.Errorf("expected provider delete id captured, got %+v", info.Uzcard)
	}
}

func TestUzcardCharge(t *testing.T) {
	t.Run("sends whole som and the correlation id", func(t *testing.T) {
		var body map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"transactionId": 777, "utrno": 888},
			})
		}))
		defer srv.Close()

		p := newUzcardTestProvider(srv)
		card := &model.Card{SubscriberID: "sub-1", Token: "tok-42"}
		res, err := p.Charge(context.Background(), adapter.ChargeRequest{
			Card:          card,
			AmountTiyin:   555500,
			CorrelationID: "subscription-uzcard-ABC",
		})
		if err != nil {
			t.Fatalf("charge: %v", err)
		}
		if res.ProviderTransID != "777" {
			t.Errorf("unexpected provider trans id %q", res.ProviderTransID)
		}
		if body["amount"] != float64(5555) {
			t.Errorf("expected amount 5555 som, got %v", body["amount"])
		}
		if body["extraId"] != "subscription-uzcard-ABC" {
			t.Errorf("expected correlation id passed through, got %v", body["extraId"])
		}
		if body["sendOtp"] != false {
			t.Errorf("expected sendOtp false, got %v", body["sendOtp"])
		}
	})

	t.Run("insufficient funds is a final decline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"errorCode": -110, "errorMessage": "not enough"},
			})
		}))
		defer srv.Close()

		p := newUzcardTestProvider(srv)
		_, err := p.Charge(context.Background(), adapter.ChargeRequest{Card: &model.Card{Token: "tok"}, AmountTiyin: 555500})
		var perr *adapter.ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("expected provider error, got %v", err)
		}
		if !perr.Declined {
			t.Error("code -110 must be a final decline")
		}
		if perr.Message != uzcardErrorMessages["-110"] {
			t.Errorf("expected the localized message, got %q", perr.Message)
		}
	})

	t.Run("missing transaction id is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{}})
		}))
		defer srv.Close()

		p := newUzcardTestProvider(srv)
		_, err := p.Charge(context.Background(), adapter.ChargeRequest{Card: &model.Card{Token: "tok"}, AmountTiyin: 555500})
		var perr *adapter.ProviderError
		if !errors.As(err, &perr) || perr.Code != "unconfirmed" {
			t.Errorf("expected unconfirmed provider error, got %v", err)
		}
	})

	t.Run("unmapped code falls back to the generic message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"errorCode": -999},
			})
		}))
		defer srv.Close()

		p := newUzcardTestProvider(srv)
		_, err := p.Charge(context.Background(), adapter.ChargeRequest{Card: &model.Card{Token: "tok"}, AmountTiyin: 100})
		var perr *adapter.ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("expected provider error, got %v", err)
		}
		if perr.Message != uzcardFallbackMessage {
			t.Errorf("expected fallback message, got %q", perr.Message)
		}
		if perr.Declined {
			t.Error("unmapped codes must not be treated as declines")
		}
	})
}

func TestUzcardRemove(t *testing.T) {
	t.Run("deletes by the provider-internal id", func(t *testing.T) {
		var gotMethod, gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotQuery = r.URL.Query().Get("userCardId")
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"success": true}})
		}))
		defer srv.Close()

		p := newUzcardTestProvider(srv)
		card := &model.Card{ID: "card-1", Token: "tok-42", Uzcard: &model.UzcardMeta{DeleteID: "4242"}}
		if err := p.Remove(context.Background(), card); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if gotMethod != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", gotMethod)
		}
		if gotQuery != "4242" {
			t.Errorf("expected userCardId 4242, got %q", gotQuery)
		}
	})

	t.Run("card without a delete id", func(t *testing.T) {
		p := newUzcardTestProvider(httptest.NewServer(http.NotFoundHandler()))
		if err := p.Remove(context.Background(), &model.Card{ID: "card-1"}); err == nil {
			t.Error("expected an error for a card without the provider id")
		}
	})
}
