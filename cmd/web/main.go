package main

import (
	"errors"
	"io/fs"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	walletpnl "github.com/monjuik/go-walletpnl"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := walletpnl.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := walletpnl.NewLogger("web")
	analyzer := walletpnl.NewAnalyzer(cfg, walletpnl.NewPriceCache(cfg), walletpnl.NewLogger("analyzer"))
	handler := walletpnl.NewServer(analyzer, logger)

	logger.Printf("Listening at %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
