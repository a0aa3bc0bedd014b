package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"time"

	"elearning-billing/internal/config"
	"elearning-billing/internal/infra/adapters/gateway"
	"elearning-billing/internal/infra/logging"
)

// webhook-sim signs a gateway event with the configured webhook secret and posts it
// to a running service. Handy with the sandbox gateway, which never calls back.
//
//	webhook-sim -config config.yaml -event testdata/pix_paid.json
//	cat event.json | webhook-sim -event -
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	eventPath := flag.String("event", "-", "event JSON file, - for stdin")
	target := flag.String("url", "http://localhost:8080/webhooks/payment", "webhook endpoint")
	repeat := flag.Int("repeat", 1, "deliver the same event n times")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	var payload []byte
	if *eventPath == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(*eventPath)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("read event")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for i := 0; i < *repeat; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, *target, bytes.NewReader(payload))
		if err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("build request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(gateway.SignatureHeader, gateway.Sign(cfg.Gateway.WebhookSecret, payload, time.Now()))

		resp, err := client.Do(req)
		if err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("deliver")
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		cancel()
		logger.Info().Int("attempt", i+1).Int("status", resp.StatusCode).Bytes("body", bytes.TrimSpace(body)).Msg("delivered")
	}
}
