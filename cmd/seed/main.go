// Command seed loads a demo marketplace: an administrator, moderators, sellers
// with a small catalog, and buyers. Accounts and products belong to other
// services in production, so this is the only way to populate them locally.
//
// With -out the dataset is written as a MEMORY_SEED_FILE; otherwise it is
// upserted into the configured PostgreSQL database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/config"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository/memory"
	"github.com/sylwiakmieciak/madebyu-sub000/migrations"
	pkgconfig "github.com/sylwiakmieciak/madebyu-sub000/pkg/config"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/logger"
)

// seedNamespace makes ids stable across runs so reseeding updates rows in place.
var seedNamespace = uuid.MustParse("b5b0c7a4-58c4-4b5e-9a0e-5e3d6c1f7a21")

func seedID(name string) string {
	return uuid.NewSHA1(seedNamespace, []byte(name)).String()
}

type productDef struct {
	name     string
	seller   string
	category int64
	price    string
	stock    int
	approved bool
}

func buildSeed(now time.Time) *memory.Seed {
	users := []domain.User{
		{ID: seedID("admin"), Email: "admin@madebyu.test", DisplayName: "Admin", Role: domain.RoleAdmin},
		{
			ID: seedID("moderator"), Email: "moderator@madebyu.test", DisplayName: "Kasia Moderator",
			Role: domain.RoleUser, CanModerateProducts: true, CanModerateComments: true,
			ModerationCategories: []int64{1, 2},
		},
		{ID: seedID("seller-ceramics"), Email: "ceramics@madebyu.test", DisplayName: "Glina Studio", Role: domain.RoleUser},
		{ID: seedID("seller-textiles"), Email: "textiles@madebyu.test", DisplayName: "Wełniana Pracownia", Role: domain.RoleUser},
		{ID: seedID("buyer-1"), Email: "ola@madebyu.test", DisplayName: "Ola", Role: domain.RoleUser},
		{ID: seedID("buyer-2"), Email: "tomek@madebyu.test", DisplayName: "Tomek", Role: domain.RoleUser},
	}
	for i := range users {
		users[i].CreatedAt = now
	}

	defs := []productDef{
		{name: "Stoneware mug", seller: "seller-ceramics", category: 1, price: "59.00", stock: 12, approved: true},
		{name: "Serving bowl", seller: "seller-ceramics", category: 1, price: "139.50", stock: 4, approved: true},
		{name: "Glazed vase", seller: "seller-ceramics", category: 1, price: "210.00", stock: 2},
		{name: "Merino scarf", seller: "seller-textiles", category: 2, price: "89.90", stock: 8, approved: true},
		{name: "Linen tote bag", seller: "seller-textiles", category: 2, price: "45.00", stock: 20, approved: true},
		{name: "Woven wall hanging", seller: "seller-textiles", category: 3, price: "320.00", stock: 1},
	}

	products := make([]domain.Product, 0, len(defs))
	for _, d := range defs {
		p := domain.Product{
			ID:               seedID("product-" + d.name),
			SellerID:         seedID(d.seller),
			CategoryID:       d.category,
			Name:             d.name,
			Price:            decimal.RequireFromString(d.price),
			StockQuantity:    d.stock,
			Status:           domain.ProductStatusDraft,
			ModerationStatus: domain.ModerationPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if d.approved {
			moderator := seedID("moderator")
			p.Status = domain.ProductStatusPublished
			p.ModerationStatus = domain.ModerationApproved
			p.ModeratedBy = &moderator
			p.ModeratedAt = &now
		}
		products = append(products, p)
	}

	return &memory.Seed{Users: users, Products: products}
}

func writeSeedFile(path string, seed *memory.Seed) error {
	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, db database.DBTX, seed *memory.Seed) error {
	for _, u := range seed.Users {
		_, err := db.Exec(ctx, `
			INSERT INTO users (id, email, display_name, role, can_moderate_products,
				can_moderate_comments, can_manage_themes, moderation_categories, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				email = EXCLUDED.email,
				display_name = EXCLUDED.display_name,
				role = EXCLUDED.role,
				can_moderate_products = EXCLUDED.can_moderate_products,
				can_moderate_comments = EXCLUDED.can_moderate_comments,
				can_manage_themes = EXCLUDED.can_manage_themes,
				moderation_categories = EXCLUDED.moderation_categories`,
			u.ID, u.Email, u.DisplayName, u.Role, u.CanModerateProducts,
			u.CanModerateComments, u.CanManageThemes, u.ModerationCategories, u.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert user %s: %w", u.Email, err)
		}
	}

	for _, p := range seed.Products {
		_, err := db.Exec(ctx, `
			INSERT INTO products (id, seller_id, category_id, name, price, stock_quantity,
				status, moderation_status, moderated_by, moderated_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				stock_quantity = EXCLUDED.stock_quantity,
				updated_at = EXCLUDED.updated_at`,
			p.ID, p.SellerID, p.CategoryID, p.Name, p.Price.StringFixed(2), p.StockQuantity,
			string(p.Status), string(p.ModerationStatus), p.ModeratedBy, p.ModeratedAt, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert product %q: %w", p.Name, err)
		}
	}
	return nil
}

func run(ctx context.Context, out string, log *slog.Logger) error {
	seed := buildSeed(time.Now().UTC())

	if out != "" {
		if err := writeSeedFile(out, seed); err != nil {
			return err
		}
		log.Info("seed file written", slog.String("path", out))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := upsert(ctx, pool, seed); err != nil {
		return err
	}
	log.Info("database seeded",
		slog.Int("users", len(seed.Users)),
		slog.Int("products", len(seed.Products)),
	)
	return nil
}

func main() {
	out := flag.String("out", "", "write a memory seed file to this path instead of seeding PostgreSQL")
	flag.Parse()

	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("madebyu-seed", logger.Options{Level: "info", Format: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, *out, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
