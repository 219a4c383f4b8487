package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/adapter/filestore"
	"github.com/aq2208/storefront-api/internal/adapter/payment"
	"github.com/aq2208/storefront-api/internal/adapter/storefront"
	"github.com/aq2208/storefront-api/internal/cart"
	"github.com/aq2208/storefront-api/internal/checkout"
	"github.com/aq2208/storefront-api/internal/currency"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	email := flag.String("email", "", "sign in non-interactively")
	password := flag.String("password", "", "password for -email")
	flag.Parse()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateClient(); err != nil {
		log.Fatal(err)
	}

	// the terminal belongs to the UI; logs go to a file only
	logging.Init(logging.Options{
		Service:  "storefront",
		FilePath: filepath.Join(cfg.Client.StorageDir, "client.log"),
		Level:    cfg.App.LogLevel,
		Stdout:   io.Discard,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := filestore.New(cfg.Client.StorageDir)
	if err != nil {
		log.Fatal(err)
	}
	c := cart.NewStore(store)
	if err := c.Hydrate(ctx); err != nil {
		log.Fatal(err)
	}
	cur := currency.NewSelector(store)
	if err := cur.Hydrate(ctx); err != nil {
		log.Fatal(err)
	}

	api, err := storefront.New(cfg.Client.APIURL, cfg.Client.Timeout)
	if err != nil {
		log.Fatal(err)
	}
	if *email != "" {
		if err := api.Login(ctx, *email, *password); err != nil {
			log.Fatalf("login: %v", err)
		}
	}
	payments, err := payment.New(payment.Options{
		BaseURL: cfg.Payment.BaseURL,
		Key:     cfg.Payment.PublishedKey,
		Timeout: cfg.Payment.Timeout,
	})
	if err != nil {
		log.Fatal(err)
	}

	app := tui.NewApp(ctx, api, c, cur, func() *checkout.Sequencer {
		return checkout.New(c, api, payments, checkout.WithReturnURL(cfg.Client.ReturnURL))
	})
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
