package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/netcommerce-gateway/internal/cart"
	"github.com/noah-isme/netcommerce-gateway/internal/netcommerce"
	"github.com/noah-isme/netcommerce-gateway/internal/order"
)

type options struct {
	total    string
	currency string
	session  string
	email    string
	sku      string
	qty      int64
}

// Seeds a pending order, and the cart it was placed from, for exercising the
// NetCommerce checkout by hand.
func main() {
	var opts options
	flag.StringVar(&opts.total, "total", "19.99", "order total")
	flag.StringVar(&opts.currency, "currency", "USD", "currency symbol (USD or LBP)")
	flag.StringVar(&opts.session, "session", "", "cart session id the order belongs to")
	flag.StringVar(&opts.email, "email", "buyer@example.com", "billing email")
	flag.StringVar(&opts.sku, "sku", "demo-sku", "product placed in the session cart")
	flag.Int64Var(&opts.qty, "qty", 1, "cart quantity for -sku")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	if err := run(context.Background(), opts); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options) error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	amount, err := decimal.NewFromString(opts.total)
	if err != nil {
		return fmt.Errorf("invalid total %q: %w", opts.total, err)
	}
	if _, err := netcommerce.CurrencyCode(opts.currency); err != nil {
		return fmt.Errorf("invalid currency: %w", err)
	}

	if err := order.Migrate(dbURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if opts.session != "" {
		if err := seedCart(ctx, opts); err != nil {
			return err
		}
	}

	store := order.PostgresStore{Pool: pool}
	o, err := store.Create(ctx, order.Order{
		Total:     amount,
		Currency:  opts.currency,
		SessionID: opts.session,
		Billing: order.Billing{
			FirstName: "Demo",
			LastName:  "Buyer",
			Email:     opts.email,
			Country:   "LB",
		},
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	fmt.Printf("order %d created (%s %s)\n", o.ID, o.Total.StringFixed(2), o.Currency)
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		fmt.Printf("pay at %s/checkout/order-pay/%d\n", base, o.ID)
	}
	return nil
}

func seedCart(ctx context.Context, opts options) error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return errors.New("REDIS_URL is required to seed a session cart")
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	defer client.Close()

	if err := (cart.Store{R: client}).Add(ctx, opts.session, opts.sku, opts.qty); err != nil {
		return fmt.Errorf("seed cart: %w", err)
	}
	fmt.Printf("cart %s holds %d x %s\n", opts.session, opts.qty, opts.sku)
	return nil
}
