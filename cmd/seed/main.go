// seed inserts development sample principals for local testing. Idempotent:
// existing rows are left untouched.
package main

import (
	"context"
	"log"

	"ai-core-platform/security/internal/config"
	"ai-core-platform/security/internal/db"
)

const insertPrincipalSQL = `
INSERT INTO principals (id, roles, permissions, subscription_tier, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

type seedPrincipal struct {
	id          string
	roles       []string
	permissions []string
	tier        string
	status      string
}

var devPrincipals = []seedPrincipal{
	{
		id:          "dev-user-001",
		roles:       []string{"user"},
		permissions: []string{"content:read"},
		tier:        "free",
		status:      "active",
	},
	{
		id:          "dev-user-002",
		roles:       []string{"user", "admin"},
		permissions: []string{"content:read", "content:write", "admin:manage"},
		tier:        "enterprise",
		status:      "active",
	},
	{
		id:          "dev-user-003",
		roles:       []string{"user"},
		permissions: []string{"content:read"},
		tier:        "pro",
		status:      "disabled",
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	for _, p := range devPrincipals {
		tag, err := pool.Exec(ctx, insertPrincipalSQL, p.id, p.roles, p.permissions, p.tier, p.status)
		if err != nil {
			log.Fatalf("seed %s: %v", p.id, err)
		}
		if tag.RowsAffected() == 0 {
			log.Printf("seed: %s already present, skipped", p.id)
		} else {
			log.Printf("seed: inserted %s (%s, %s)", p.id, p.tier, p.status)
		}
	}
}
