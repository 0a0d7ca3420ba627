package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/Paigeblanch/TimeAuthority/internal/api"
	"github.com/Paigeblanch/TimeAuthority/internal/config"
	"github.com/Paigeblanch/TimeAuthority/internal/ledger"
	"github.com/Paigeblanch/TimeAuthority/internal/logging"
	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
	"github.com/Paigeblanch/TimeAuthority/internal/service"
	"github.com/Paigeblanch/TimeAuthority/internal/x402"
)

type Application struct {
	Server *http.Server
	Ledger *ledger.Ledger
}

func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	terms := x402.Terms{
		Amount:          cfg.Pricing.Amount,
		Currency:        cfg.Pricing.Currency,
		Network:         cfg.Pricing.Network,
		Recipient:       cfg.Pricing.Recipient,
		Description:     cfg.Pricing.Description,
		FacilitatorName: cfg.Verifier.FacilitatorName,
		FacilitatorURL:  cfg.Verifier.FacilitatorURL,
	}

	var verifier x402.Verifier
	switch strings.ToLower(cfg.Verifier.Mode) {
	case "facilitator":
		verifier = x402.NewFacilitatorVerifier(cfg.Verifier.FacilitatorURL, cfg.Verifier.APIKey, time.Duration(cfg.Verifier.TimeoutSeconds)*time.Second)
	default:
		verifier = &x402.SimulatedVerifier{}
	}

	svc, err := service.New(service.Params{
		Ledger:   store,
		Verifier: verifier,
		Terms:    terms,
		IDScheme: protocol.IDScheme(cfg.Ledger.IDScheme),
		Service:  cfg.Logging.Service,
		Version:  cfg.Logging.Version,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build witness service: %w", err)
	}

	handler := api.NewHandler(svc, logger)

	// Agents call from anywhere; the payment headers must stay readable
	// cross-origin.
	corsMW := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{api.HeaderPaymentRequired, api.HeaderPaymentResponse},
		AllowCredentials: true,
	})

	env := logging.Environment{
		Service: cfg.Logging.Service,
		Version: cfg.Logging.Version,
		Commit:  cfg.Logging.Commit,
		Region:  cfg.Logging.Region,
	}
	root := logging.Middleware(logger, env)(corsMW.Handler(handler.Router()))

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           root,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Application{Server: server, Ledger: store}, nil
}

func (a *Application) Shutdown(ctx context.Context) error {
	defer a.Ledger.Close()
	return a.Server.Shutdown(ctx)
}
