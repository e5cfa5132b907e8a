package main

// 本地调试用：签发一个访问令牌
//
//	go run ./cmd/devtoken -user 42 -ttl 2h

import (
	"flag"
	"fmt"
	"log"
	"time"

	"CityClaim/config"
	"CityClaim/pkg/token"
)

func main() {
	userID := flag.Int64("user", 1, "user id to embed in the token")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if config.Cfg.IsProduction() {
		log.Fatal("devtoken refuses to run with ENVIRONMENT=production")
	}
	if *userID <= 0 {
		log.Fatal("user id must be positive")
	}

	signed, expiresAt, err := token.GenerateAccessToken(*userID, config.Cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(signed)
	fmt.Printf("# expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
}
