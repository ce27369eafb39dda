package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradealerter/config"
	binanceadapter "tradealerter/internal/adapters/brokerage/binance"
	webulladapter "tradealerter/internal/adapters/brokerage/webull"
	"tradealerter/internal/adapters/csvstore"
	"tradealerter/internal/adapters/jsonstore"
	"tradealerter/internal/adapters/logger"
	"tradealerter/internal/adapters/sqlite"
	"tradealerter/internal/app"
	"tradealerter/internal/ledger"
	"tradealerter/internal/ports"
	"tradealerter/internal/retry"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Stores. Corrupt persisted state is fatal: starting empty
	// would re-alert and re-average already-recorded history.
	tableStore, err := csvstore.New(csvstore.Config{Path: cfg.PortfolioPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position table store")
		log.Fatalf("FATAL: Failed to initialize position table store: %v", err)
	}

	seenStore, err := jsonstore.New(jsonstore.Config{Path: cfg.OrdersPath, Logger: appLogger, Replay: cfg.Replay})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize seen-order store")
		log.Fatalf("FATAL: Failed to initialize seen-order store: %v", err)
	}

	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: cfg.JournalDBPath, Logger: appLogger})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize fill journal")
		log.Fatalf("FATAL: Failed to initialize fill journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing fill journal")
		}
	}()

	// 4. Initialize the Ledger over the persisted table
	ldg, err := ledger.New(tableStore, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position ledger")
		log.Fatalf("FATAL: Failed to initialize position ledger: %v", err)
	}

	// 5. Initialize Brokerage Adapters
	policy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		Delay:       cfg.RetryDelay,
		Exponential: cfg.RetryExponential,
	}
	var brokers []ports.Brokerage
	for _, name := range cfg.Brokers {
		switch name {
		case "webull":
			wb, err := webulladapter.New(webulladapter.Config{
				BaseURL:     cfg.WebullBaseURL,
				AccessToken: cfg.WebullAccessToken,
				DeviceID:    cfg.WebullDeviceID,
				AccountID:   cfg.WebullAccountID,
				Logger:      appLogger,
				Retry:       policy,
			})
			if err != nil {
				appLogger.Error(ctx, err, "FATAL: Failed to initialize Webull adapter")
				log.Fatalf("FATAL: Failed to initialize Webull adapter: %v", err)
			}
			brokers = append(brokers, wb)
		case "binance":
			bn, err := binanceadapter.New(binanceadapter.Config{
				APIKey:     cfg.BinanceAPIKey,
				SecretKey:  cfg.BinanceSecretKey,
				UseTestnet: cfg.IsTestnet,
				Symbols:    cfg.BinanceSymbols,
				Logger:     appLogger,
				Retry:      policy,
			})
			if err != nil {
				appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance adapter")
				log.Fatalf("FATAL: Failed to initialize Binance adapter: %v", err)
			}
			brokers = append(brokers, bn)
		}
	}
	appLogger.Info(ctx, "Brokerage adapters initialized", map[string]interface{}{"count": len(brokers)})

	// 6. Initialize the Poll Loop Service
	service, err := app.NewService(cfg, appLogger, brokers, ldg, seenStore, journal)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize service")
		log.Fatalf("FATAL: Failed to initialize service: %v", err)
	}

	// 7. Console alert consumer: stands in for the external dispatch UI. It
	// drains the outbound channel and routes the sent-counter increments back
	// through the ledger's single writer.
	go func() {
		for a := range service.Alerts() {
			appLogger.Info(ctx, "ALERT "+a.Text, map[string]interface{}{"filledAt": a.FilledAt})
			if a.PositionRef == nil {
				continue // orphan exit, nothing to dispatch against
			}
			entry := len(a.Text) >= 3 && a.Text[:3] == "BTO"
			if err := ldg.MarkAlertSent(ctx, *a.PositionRef, entry); err != nil {
				appLogger.Error(ctx, err, "Failed to mark alert sent", map[string]interface{}{"ref": *a.PositionRef})
			}
		}
	}()

	// 8. Start the Service
	if err := service.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Service exited with error")
		log.Fatalf("FATAL: Service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
