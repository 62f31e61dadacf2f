package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/admin"
	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/database"
	"github.com/shopspring/decimal"
)

// Command initialize stores the one-time game configuration from the
// environment. Running it again leaves the first configuration in place.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	params := admin.InitParams{
		AdminPhone:    accounts.Name(os.Getenv("ADMIN_PHONE")),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		PaymentToken:  os.Getenv("PAYMENT_TOKEN"),
		PaymentAmount: amountEnv("PAYMENT_AMOUNT"),
		RewardToken:   os.Getenv("REWARD_TOKEN"),
		RewardAmount:  amountEnv("REWARD_AMOUNT"),
	}

	err = admin.NewStore(db).Initialize(context.Background(), params)
	if errors.Is(err, admin.ErrAlreadyInitialized) {
		log.Println("Game already initialized; existing configuration kept")
		return
	}
	if err != nil {
		log.Fatalf("Failed to initialize game: %v", err)
	}

	log.Printf("Game initialized")
	log.Printf("  Admin phone: %s", params.AdminPhone)
	log.Printf("  Payment: %s %s", params.PaymentAmount, params.PaymentToken)
	log.Printf("  Reward:  %s %s", params.RewardAmount, params.RewardToken)
}

// amountEnv parses a token amount; unset means zero. Fractions are
// rejected later by InitParams.Validate.
func amountEnv(key string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Fatalf("Invalid %s %q: %v", key, v, err)
	}
	return d
}
