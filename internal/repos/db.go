package repos

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, so every repo method
// can run inside or outside a transaction.
type Querier = sqlx.ExtContext

// OpenDB connects, creates the schema and seeds demo data when empty.
// driver is "sqlite" (default) or "mysql".
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	return OpenDBWithPool(driver, dsn, 10)
}

func OpenDBWithPool(driver, dsn string, maxOpen int) (*sqlx.DB, error) {
	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		dsn = sqliteDSN(dsn)
	case "mysql":
		dsn = mysqlDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// One connection serialises writers; immediate transactions take the
		// write lock up front.
		db.SetMaxOpenConns(1)
	} else if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "ferremas.db"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate"
}

func mysqlDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "parseTime=true&loc=UTC"
}

// WithTx runs fn in one transaction. Read committed on MySQL; SQLite uses its
// default (serialisable) level.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	var opts *sql.TxOptions
	if db.DriverName() == "mysql" {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// forUpdate returns the row-lock suffix for the connected dialect. SQLite has
// no row locks; its immediate transactions already hold the database write lock.
func forUpdate(q Querier) string {
	if q.DriverName() == "mysql" {
		return " FOR UPDATE"
	}
	return ""
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products(
  id VARCHAR(36) PRIMARY KEY,
  code VARCHAR(50) NOT NULL UNIQUE,
  name VARCHAR(200) NOT NULL,
  price DECIMAL(12,2) NOT NULL CHECK (price >= 0),
  tax_rate DECIMAL(5,2) NOT NULL DEFAULT 19,
  status VARCHAR(20) NOT NULL DEFAULT 'Activo'
)`,
	`CREATE TABLE IF NOT EXISTS branches(
  id VARCHAR(36) PRIMARY KEY,
  name VARCHAR(100) NOT NULL,
  city VARCHAR(100) NOT NULL DEFAULT '',
  region VARCHAR(100) NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS customers(
  id VARCHAR(36) PRIMARY KEY,
  name VARCHAR(150) NOT NULL,
  email VARCHAR(150) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS currencies(
  id VARCHAR(10) PRIMARY KEY,
  name VARCHAR(50) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS warehouse_keepers(
  id VARCHAR(36) PRIMARY KEY,
  name VARCHAR(150) NOT NULL,
  branch_id VARCHAR(36) NULL,
  FOREIGN KEY (branch_id) REFERENCES branches(id)
)`,
	`CREATE TABLE IF NOT EXISTS inventory(
  id VARCHAR(36) PRIMARY KEY,
  product_id VARCHAR(36) NOT NULL,
  branch_id VARCHAR(36) NOT NULL,
  current_stock INT NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
  reserved_stock INT NOT NULL DEFAULT 0 CHECK (reserved_stock >= 0),
  minimum_stock INT NOT NULL DEFAULT 0,
  maximum_stock INT NULL,
  reorder_point INT NULL,
  warehouse_location VARCHAR(100) NULL,
  keeper_id VARCHAR(36) NULL,
  last_updated DATETIME NOT NULL,
  UNIQUE (product_id, branch_id),
  FOREIGN KEY (product_id) REFERENCES products(id),
  FOREIGN KEY (branch_id) REFERENCES branches(id),
  FOREIGN KEY (keeper_id) REFERENCES warehouse_keepers(id)
)`,
	`CREATE TABLE IF NOT EXISTS orders(
  id VARCHAR(36) PRIMARY KEY,
  code VARCHAR(20) NOT NULL UNIQUE,
  customer_id VARCHAR(36) NOT NULL,
  branch_id VARCHAR(36) NOT NULL,
  salesperson_id VARCHAR(36) NULL,
  channel VARCHAR(20) NOT NULL,
  delivery_method VARCHAR(30) NOT NULL,
  delivery_address VARCHAR(255) NULL,
  delivery_city VARCHAR(100) NULL,
  delivery_region VARCHAR(100) NULL,
  comments VARCHAR(500) NULL,
  status VARCHAR(30) NOT NULL,
  subtotal DECIMAL(12,2) NOT NULL,
  discount DECIMAL(12,2) NOT NULL DEFAULT 0,
  taxes DECIMAL(12,2) NOT NULL,
  shipping_cost DECIMAL(12,2) NOT NULL DEFAULT 0,
  total DECIMAL(12,2) NOT NULL,
  currency_id VARCHAR(10) NOT NULL,
  priority VARCHAR(10) NOT NULL,
  ordered_at DATETIME NOT NULL,
  estimated_delivery DATETIME NOT NULL,
  FOREIGN KEY (customer_id) REFERENCES customers(id),
  FOREIGN KEY (branch_id) REFERENCES branches(id),
  FOREIGN KEY (currency_id) REFERENCES currencies(id)
)`,
	`CREATE TABLE IF NOT EXISTS order_lines(
  id VARCHAR(36) PRIMARY KEY,
  order_id VARCHAR(36) NOT NULL,
  line_no INT NOT NULL,
  product_id VARCHAR(36) NOT NULL,
  quantity INT NOT NULL CHECK (quantity > 0),
  unit_price DECIMAL(12,2) NOT NULL,
  discount DECIMAL(12,2) NOT NULL DEFAULT 0,
  tax DECIMAL(12,2) NOT NULL DEFAULT 0,
  subtotal DECIMAL(12,2) NOT NULL,
  status VARCHAR(20) NOT NULL DEFAULT 'Pendiente',
  UNIQUE (order_id, line_no),
  FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
  FOREIGN KEY (product_id) REFERENCES products(id)
)`,
	`CREATE TABLE IF NOT EXISTS order_status_history(
  id VARCHAR(36) PRIMARY KEY,
  order_id VARCHAR(36) NOT NULL,
  seq INT NOT NULL,
  previous_status VARCHAR(30) NULL,
  new_status VARCHAR(30) NOT NULL,
  user_id VARCHAR(36) NOT NULL,
  comment VARCHAR(500) NULL,
  changed_at DATETIME NOT NULL,
  UNIQUE (order_id, seq),
  FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS movements(
  id VARCHAR(36) PRIMARY KEY,
  inventory_id VARCHAR(36) NOT NULL,
  seq INT NOT NULL,
  type VARCHAR(30) NOT NULL,
  quantity INT NOT NULL CHECK (quantity > 0),
  created_at DATETIME NOT NULL,
  order_id VARCHAR(36) NULL,
  return_id VARCHAR(36) NULL,
  keeper_id VARCHAR(36) NULL,
  comment VARCHAR(500) NULL,
  destination_branch_id VARCHAR(36) NULL,
  UNIQUE (inventory_id, seq),
  FOREIGN KEY (inventory_id) REFERENCES inventory(id) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS api_keys(
  id VARCHAR(36) PRIMARY KEY,
  user_id VARCHAR(36) NOT NULL,
  name VARCHAR(100) NOT NULL,
  secret_hash VARCHAR(100) NOT NULL,
  role VARCHAR(20) NOT NULL DEFAULT 'OPERATOR',
  active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL,
  last_used DATETIME NULL
)`,
}

// MySQL indexes its foreign keys itself and lacks CREATE INDEX IF NOT EXISTS.
var sqliteIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_inventory_branch ON inventory(branch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_created_at ON movements(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_type ON movements(type)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_ordered_at ON orders(ordered_at)`,
}

func ensureSchema(db *sqlx.DB) error {
	stmts := schema
	if db.DriverName() == "sqlite" {
		stmts = append(append([]string{}, schema...), sqliteIndexes...)
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM branches`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo branches/products/inventory")

	ts := now()
	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	tx.MustExec(`INSERT INTO branches(id,name,city,region,active) VALUES
	  ('suc-centro','Casa Matriz','Santiago','Metropolitana',1),
	  ('suc-maipu','Sucursal Maipu','Santiago','Metropolitana',1),
	  ('suc-valpo','Sucursal Valparaiso','Valparaiso','Valparaiso',1),
	  ('suc-cerrada','Sucursal Temuco','Temuco','Araucania',0)`)

	tx.MustExec(`INSERT INTO products(id,code,name,price,tax_rate,status) VALUES
	  ('prod-martillo','FER-00001','Martillo carpintero 16oz',8990,19,'Activo'),
	  ('prod-taladro','FER-00002','Taladro percutor 650W',45990,19,'Activo'),
	  ('prod-tornillos','FER-00003','Caja tornillos 100u',3490,19,'Activo'),
	  ('prod-cemento','FER-00004','Cemento 25kg',5990,19,'Activo'),
	  ('prod-sierra','FER-00005','Sierra circular antigua',69990,19,'Descontinuado')`)

	tx.MustExec(`INSERT INTO customers(id,name,email) VALUES
	  ('cli-001','Constructora Andes','compras@andes.test'),
	  ('cli-002','Maria Gonzalez','maria@correo.test')`)

	tx.MustExec(`INSERT INTO currencies(id,name) VALUES
	  ('CLP','Peso chileno'),
	  ('USD','Dolar estadounidense')`)

	tx.MustExec(`INSERT INTO warehouse_keepers(id,name,branch_id) VALUES
	  ('bod-001','Pedro Soto','suc-centro'),
	  ('bod-002','Ana Rojas','suc-valpo')`)

	stock := []struct {
		ID, Product, Branch string
		Qty, Min            int
	}{
		{"inv-martillo-centro", "prod-martillo", "suc-centro", 40, 10},
		{"inv-martillo-valpo", "prod-martillo", "suc-valpo", 6, 5},
		{"inv-taladro-centro", "prod-taladro", "suc-centro", 12, 3},
		{"inv-tornillos-centro", "prod-tornillos", "suc-centro", 200, 50},
		{"inv-cemento-maipu", "prod-cemento", "suc-maipu", 80, 20},
	}
	for i, s := range stock {
		tx.MustExec(`INSERT INTO inventory(id,product_id,branch_id,current_stock,reserved_stock,minimum_stock,last_updated)
		  VALUES(?,?,?,?,0,?,?)`, s.ID, s.Product, s.Branch, s.Qty, s.Min, ts)
		tx.MustExec(`INSERT INTO movements(id,inventory_id,seq,type,quantity,created_at,comment)
		  VALUES(?,?,1,'Entrada',?,?,?)`, fmt.Sprintf("mov-seed-%d", i+1), s.ID, s.Qty, ts, InitialStockComment)
	}

	return tx.Commit()
}
