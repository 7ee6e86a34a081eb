// Package market parses marketplace service flags and launches the service.
package market

import (
	"context"
	"flag"
	"log"

	"github.com/longhan2109/nft-marketplace/internal/jobs/broadcaster"
	entrypoint "github.com/longhan2109/nft-marketplace/internal/platform/cmd"
	server "github.com/longhan2109/nft-marketplace/internal/services/market/app"
)

// Config holds marketplace command configuration.
type Config struct {
	Port         int      `env:"NFT_MARKET_PORT" envDefault:"8091"`
	KafkaBrokers []string `env:"NFT_MARKET_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"NFT_MARKET_KAFKA_TOPIC" envDefault:"market-events"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The marketplace HTTP server port")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "The Kafka topic for journal events")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the marketplace HTTP API service and, when Kafka brokers are
// configured, the journal broadcaster alongside it.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMarket, func(context.Context) error {
		srv, err := server.New(cfg.Port)
		if err != nil {
			return err
		}

		if len(cfg.KafkaBrokers) > 0 {
			b, err := broadcaster.New(srv.Store(), cfg.KafkaBrokers, cfg.KafkaTopic)
			if err != nil {
				srv.Close()
				return err
			}
			go func() {
				if err := b.Run(ctx); err != nil {
					log.Printf("broadcaster stopped: %v", err)
				}
			}()
		}

		return srv.Serve(ctx)
	})
}
