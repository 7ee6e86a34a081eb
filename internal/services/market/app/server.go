// Package app wires the marketplace runtime and HTTP lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/longhan2109/nft-marketplace/internal/platform/config"
	"github.com/longhan2109/nft-marketplace/internal/platform/timeouts"
	"github.com/longhan2109/nft-marketplace/internal/registry"
	"github.com/longhan2109/nft-marketplace/internal/registry/httpclient"
	markethttp "github.com/longhan2109/nft-marketplace/internal/services/market/api/http/market"
	"github.com/longhan2109/nft-marketplace/internal/services/market/service"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage"
	marketpostgres "github.com/longhan2109/nft-marketplace/internal/services/market/storage/postgres"
	marketsqlite "github.com/longhan2109/nft-marketplace/internal/services/market/storage/sqlite"
)

type serverEnv struct {
	DBDriver    string `env:"NFT_MARKET_DB_DRIVER"`
	DBPath      string `env:"NFT_MARKET_DB_PATH"`
	DBURL       string `env:"NFT_MARKET_DB_URL"`
	RegistryURL string `env:"NFT_MARKET_REGISTRY_URL"`
	PayoutURL   string `env:"NFT_MARKET_PAYOUT_URL"`
	Operator    string `env:"NFT_MARKET_OPERATOR" envDefault:"marketplace"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "market.db")
	}
	if strings.TrimSpace(cfg.DBDriver) == "" {
		cfg.DBDriver = "sqlite"
	}
	return cfg
}

// marketStore joins the storage contract with the backend lifecycle.
type marketStore interface {
	storage.MarketStore
	Close() error
}

// Server hosts the marketplace HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      marketStore
}

// Dependencies overrides runtime collaborators; zero fields fall back to
// environment-driven defaults.
type Dependencies struct {
	Store   marketStore
	Gate    registry.OwnershipGate
	Payouts registry.PayoutSender
}

// New creates a configured marketplace server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured marketplace server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	return NewWithOptions(addr, Dependencies{})
}

// NewWithOptions creates a marketplace server with explicit collaborators.
func NewWithOptions(addr string, deps Dependencies) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()

	store := deps.Store
	if store == nil {
		store, err = openMarketStore(env)
		if err != nil {
			_ = listener.Close()
			return nil, err
		}
	}

	gate := deps.Gate
	payouts := deps.Payouts
	if gate == nil || payouts == nil {
		if strings.TrimSpace(env.RegistryURL) == "" {
			_ = listener.Close()
			_ = store.Close()
			return nil, errors.New("NFT_MARKET_REGISTRY_URL is required")
		}
		if gate == nil {
			gate = httpclient.New(env.RegistryURL, env.Operator)
		}
		if payouts == nil {
			payoutURL := strings.TrimSpace(env.PayoutURL)
			if payoutURL == "" {
				payoutURL = env.RegistryURL
			}
			payouts = httpclient.NewPayoutClient(payoutURL)
		}
	}

	svc := service.New(store, gate, payouts)
	handler := markethttp.NewHandler(svc).Routes()
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		listener:   listener,
		httpServer: httpServer,
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Store exposes the backing store for companion jobs sharing the process.
func (s *Server) Store() storage.MarketStore {
	if s == nil {
		return nil
	}
	return s.store
}

// Run creates and serves a marketplace server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("market server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases marketplace server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close market store: %v", err)
		}
	}
}

func openMarketStore(env serverEnv) (marketStore, error) {
	switch env.DBDriver {
	case "sqlite":
		if dir := filepath.Dir(env.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := marketsqlite.Open(env.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open market sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		if strings.TrimSpace(env.DBURL) == "" {
			return nil, errors.New("NFT_MARKET_DB_URL is required for the postgres driver")
		}
		store, err := marketpostgres.Open(context.Background(), env.DBURL)
		if err != nil {
			return nil, fmt.Errorf("open market postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", env.DBDriver)
	}
}
