package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gocontagem/internal/pkg/logger"
	"gocontagem/internal/service/monitorservice"
)

// Dashboard de acompanhamento em modo texto: assina o stream de um
// inventário e imprime os totais agregados em intervalos regulares.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		stdlog.Printf("⚠️ Warning: .env file not found or failed to read. Loading configs from system environment only: %v", err)
	}

	var (
		baseURL     string
		token       string
		inventoryID string
		interval    time.Duration
		liveness    time.Duration
	)
	flag.StringVar(&baseURL, "url", envOr("MONITOR_BASE_URL", "http://localhost:8080"), "base URL of the counting server")
	flag.StringVar(&token, "token", os.Getenv("MONITOR_TOKEN"), "JWT token of the observer")
	flag.StringVar(&inventoryID, "inventario", "", "inventory ID to watch")
	flag.DurationVar(&interval, "intervalo", 5*time.Second, "interval between printed summaries")
	flag.DurationVar(&liveness, "liveness", 45*time.Second, "max silence before forcing a reconnect")
	flag.Parse()

	if inventoryID == "" {
		stdlog.Fatal("❌ monitor: flag -inventario é obrigatória")
	}
	if token == "" {
		stdlog.Fatal("❌ monitor: informe -token ou a variável MONITOR_TOKEN")
	}

	log := logger.NewLogger(envOr("LOG_LEVEL", "info"))

	dialer := &monitorservice.SSEDialer{
		BaseURL: baseURL,
		Token:   token,
		Logger:  log,
	}
	agg := monitorservice.NewAggregator()
	client := monitorservice.NewClient(dialer, agg, inventoryID, monitorservice.ClientConfig{
		LivenessTimeout: liveness,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("⚡ Monitor conectando ao stream do inventário", map[string]interface{}{
		"inventory_id": inventoryID,
		"url":          baseURL,
	})

	go client.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("✅ Monitor encerrado.", nil)
			return
		case <-ticker.C:
			printSummary(client)
		}
	}
}

// printSummary imprime uma linha por setor e os totais do inventário.
func printSummary(client *monitorservice.Client) {
	snap := client.Aggregator().Snapshot()

	totalCounts, totalQuantity := 0, 0
	for _, s := range snap.Sectors {
		totalCounts += s.TotalCounts
		totalQuantity += s.TotalQuantity
	}

	fmt.Printf("\n[%s] inventário %s: %d contagens, %d unidades, %d operadores ativos\n",
		time.Now().Format("15:04:05"), snap.InventoryID, totalCounts, totalQuantity, len(snap.Operators))
	for _, s := range snap.Sectors {
		fmt.Printf("  setor %-12s %-11s %5d contagens %7d unidades\n",
			s.Prefix, s.Status, s.TotalCounts, s.TotalQuantity)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
