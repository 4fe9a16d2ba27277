package infra

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and applies the
// idempotent schema: the two relations, the derived views and the row-level
// security policies that make scopedRole the only way in.
func NewDatabase(dsn, scopedRole string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db, scopedRole); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the schema. Safe to re-run.
// AutoMigrate is not used: checks, views and policies are not expressible
// through struct tags.
func RunMigrations(db *gorm.DB, scopedRole string) error {
	for _, p := range schemaPatches(scopedRole) {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("schema patch %q: %w", p.descr, err)
		}
	}
	return nil
}

type patch struct{ descr, sql string }

func schemaPatches(scopedRole string) []patch {
	role := pgx.Identifier{scopedRole}.Sanitize()
	literal := "'" + strings.ReplaceAll(scopedRole, "'", "''") + "'"
	canWrite := "coalesce(request_claim('role'), '') <> 'viewer'"

	return []patch{
		{"pgcrypto", `CREATE EXTENSION IF NOT EXISTS pgcrypto`},

		{"products table", `
CREATE TABLE IF NOT EXISTS products (
  id                uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  name              text NOT NULL CONSTRAINT products_name_not_blank CHECK (btrim(name) <> ''),
  description       text,
  sku               text NOT NULL CONSTRAINT products_sku_key UNIQUE
                         CONSTRAINT products_sku_format CHECK (sku ~ '^[A-Za-z0-9_-]+$'),
  reorder_threshold integer NOT NULL DEFAULT 10 CONSTRAINT products_reorder_threshold_check CHECK (reorder_threshold >= 0),
  created_at        timestamptz NOT NULL DEFAULT now(),
  updated_at        timestamptz NOT NULL DEFAULT now()
)`},

		// no foreign key: ledger entries outlive the product they reference
		{"stock_transactions table", `
CREATE TABLE IF NOT EXISTS stock_transactions (
  id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
  seq           bigserial NOT NULL UNIQUE,
  product_id    uuid NOT NULL,
  actor_id      uuid NOT NULL,
  change_amount integer NOT NULL CONSTRAINT stock_transactions_change_amount_check CHECK (change_amount <> 0),
  note          text,
  created_at    timestamptz NOT NULL DEFAULT clock_timestamp()
)`},
		{"idx_stock_transactions_product", `
CREATE INDEX IF NOT EXISTS idx_stock_transactions_product
    ON stock_transactions (product_id, seq)`},

		// rebuilt on every start: CREATE OR REPLACE cannot change a column type
		{"drop stock views", `DROP VIEW IF EXISTS low_stock_products, product_stock`},
		{"product_stock view", `
CREATE OR REPLACE VIEW product_stock WITH (security_invoker = true) AS
SELECT p.id AS product_id,
       p.reorder_threshold,
       COALESCE(SUM(t.change_amount), 0)::bigint AS current_stock
  FROM products p
  LEFT JOIN stock_transactions t ON t.product_id = p.id
 GROUP BY p.id, p.reorder_threshold`},
		{"low_stock_products view", `
CREATE OR REPLACE VIEW low_stock_products WITH (security_invoker = true) AS
SELECT product_id, reorder_threshold, current_stock
  FROM product_stock
 WHERE current_stock < reorder_threshold`},

		{"scoped role", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = ` + literal + `) THEN
    CREATE ROLE ` + role + ` NOLOGIN;
  END IF;
END $$`},
		{"scoped role membership", `GRANT ` + role + ` TO CURRENT_USER`},
		{"grant products", `GRANT SELECT, INSERT, UPDATE, DELETE ON products TO ` + role},
		// SELECT and INSERT only: the ledger is append-only at the privilege level
		{"grant stock_transactions", `GRANT SELECT, INSERT ON stock_transactions TO ` + role},
		{"grant seq", `GRANT USAGE ON SEQUENCE stock_transactions_seq_seq TO ` + role},
		{"grant views", `GRANT SELECT ON product_stock, low_stock_products TO ` + role},

		{"request_claim", `
CREATE OR REPLACE FUNCTION request_claim(key text) RETURNS text
LANGUAGE sql STABLE AS $$
  SELECT nullif(current_setting('request.jwt.claims', true), '')::jsonb ->> key
$$`},

		{"rls products", `ALTER TABLE products ENABLE ROW LEVEL SECURITY`},
		{"rls stock_transactions", `ALTER TABLE stock_transactions ENABLE ROW LEVEL SECURITY`},

		{"drop products_read", `DROP POLICY IF EXISTS products_read ON products`},
		{"products_read", `
CREATE POLICY products_read ON products FOR SELECT TO ` + role + `
  USING (request_claim('sub') IS NOT NULL)`},
		{"drop products_insert", `DROP POLICY IF EXISTS products_insert ON products`},
		{"products_insert", `
CREATE POLICY products_insert ON products FOR INSERT TO ` + role + `
  WITH CHECK (request_claim('sub') IS NOT NULL AND ` + canWrite + `)`},
		{"drop products_update", `DROP POLICY IF EXISTS products_update ON products`},
		{"products_update", `
CREATE POLICY products_update ON products FOR UPDATE TO ` + role + `
  USING (request_claim('sub') IS NOT NULL)
  WITH CHECK (` + canWrite + `)`},
		{"drop products_delete", `DROP POLICY IF EXISTS products_delete ON products`},
		{"products_delete", `
CREATE POLICY products_delete ON products FOR DELETE TO ` + role + `
  USING (request_claim('sub') IS NOT NULL AND ` + canWrite + `)`},

		{"drop stock_transactions_read", `DROP POLICY IF EXISTS stock_transactions_read ON stock_transactions`},
		{"stock_transactions_read", `
CREATE POLICY stock_transactions_read ON stock_transactions FOR SELECT TO ` + role + `
  USING (request_claim('sub') IS NOT NULL)`},
		{"drop stock_transactions_insert", `DROP POLICY IF EXISTS stock_transactions_insert ON stock_transactions`},
		{"stock_transactions_insert", `
CREATE POLICY stock_transactions_insert ON stock_transactions FOR INSERT TO ` + role + `
  WITH CHECK (actor_id::text = request_claim('sub') AND ` + canWrite + `)`},
	}
}
