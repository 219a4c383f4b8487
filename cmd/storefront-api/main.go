package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aq2208/storefront-api/cmd/storefront-api/app"
	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/security"
)

func main() {
	hashPassword := flag.Bool("hash-password", false, "read a password from stdin and print its bcrypt hash for security.users")
	signWebhook := flag.String("sign-webhook", "", "RSA private key PEM; sign stdin as a payment webhook body and print the signature header value")
	flag.Parse()

	switch {
	case *hashPassword:
		if err := runHashPassword(os.Stdin, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	case *signWebhook != "":
		if err := runSignWebhook(*signWebhook, os.Stdin, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.InitWithConfig(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	a.Log.Info("storefront-api listening", "env", env, "addr", cfg.App.HTTPAddr)
	if err := a.Run(ctx); err != nil {
		a.Log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func runHashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	hash, err := security.HashPassword(trimNewline(line))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func runSignWebhook(keyPath string, in io.Reader, out io.Writer) error {
	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return err
	}
	priv, err := security.ParseRSAPrivateKeyPEM(pemBytes)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	sig, err := security.Sign(priv, body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, base64.StdEncoding.EncodeToString(sig))
	return err
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
