// Command seed populates a development database with demo stock and coupons.
// It runs the migrations first, so it works against an empty database. The
// data is randomized but shaped like real catalog data: a few hundred
// products with color/material/size variants, a slice of them already at or
// below their low stock threshold, and a handful of active coupon codes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstack/storefront/internal/config"
	"github.com/ecomstack/storefront/internal/domain"
	"github.com/ecomstack/storefront/internal/migrations"
	"github.com/ecomstack/storefront/internal/repository/postgres"
	"github.com/ecomstack/storefront/pkg/database"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/logger"
)

var (
	colors    = []string{"black", "white", "navy", "olive", "burgundy"}
	materials = []string{"cotton", "linen", "wool"}
	sizes     = []string{"XS", "S", "M", "L", "XL"}
)

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg := logger.New("seed", cfg.LogLevel)

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresPoolConfig(), logg)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, logg); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	products := envInt("SEED_PRODUCTS", 200)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	stocks := postgres.NewStockRepository(pool)
	coupons := postgres.NewCouponRepository(pool)

	start := time.Now()
	skuCount, err := seedStock(ctx, stocks, rng, products)
	if err != nil {
		log.Fatalf("seed stock: %v", err)
	}
	couponCount, err := seedCoupons(ctx, coupons)
	if err != nil {
		log.Fatalf("seed coupons: %v", err)
	}

	fmt.Printf("seeded %d SKUs across %d products and %d coupons in %s\n",
		skuCount, products, couponCount, time.Since(start).Round(time.Millisecond))
}

func seedStock(ctx context.Context, stocks *postgres.StockRepository, rng *rand.Rand, products int) (int, error) {
	count := 0
	for p := 0; p < products; p++ {
		productID := fmt.Sprintf("prod-%04d", p+1)
		color := colors[rng.Intn(len(colors))]
		material := materials[rng.Intn(len(materials))]

		for _, size := range sizes {
			qty := rng.Intn(40)
			// Every tenth product starts sold out so restock alerts and the
			// low-stock report have something to show.
			if p%10 == 0 {
				qty = 0
			}
			_, err := stocks.UpsertSKU(ctx, &domain.SKU{
				ID:                uuid.New().String(),
				ProductID:         productID,
				Color:             color,
				Material:          material,
				Size:              size,
				QuantityOnHand:    qty,
				LowStockThreshold: 5,
				UpdatedAt:         time.Now().UTC(),
			})
			if err != nil {
				return count, fmt.Errorf("upsert %s/%s: %w", productID, size, err)
			}
			count++
		}
	}
	return count, nil
}

func seedCoupons(ctx context.Context, coupons *postgres.CouponRepository) (int, error) {
	maxDiscount := int64(2000)
	demo := []domain.Coupon{
		{
			Code:              "WELCOME10",
			DiscountKind:      domain.DiscountPercentage,
			Value:             10,
			MinPurchaseAmount: 2500,
			MaxDiscountAmount: &maxDiscount,
			MaxUses:           1000,
		},
		{
			Code:         "FREESHIP",
			DiscountKind: domain.DiscountFixedAmount,
			Value:        500,
			MaxUses:      500,
		},
		{
			Code:              "VIP25",
			DiscountKind:      domain.DiscountPercentage,
			Value:             25,
			MinPurchaseAmount: 10000,
			MaxUses:           50,
		},
	}

	created := 0
	for i := range demo {
		c := demo[i]
		c.ID = uuid.New().String()
		c.Active = true
		c.ExpiresAt = time.Now().UTC().AddDate(0, 3, 0)
		c.CreatedAt = time.Now().UTC()
		if err := coupons.Create(ctx, &c); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				continue
			}
			return created, fmt.Errorf("create coupon %s: %w", c.Code, err)
		}
		created++
	}
	return created, nil
}
