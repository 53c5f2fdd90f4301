package store

// dialect carries the statements that differ between databases.
type dialect struct {
	createTable string
	// returning is true when the insert reports the new id with RETURNING instead of LastInsertId.
	returning bool
}

const insertOrder = `INSERT INTO orders (customer_name, email, product_name, quantity, note) VALUES (?, ?, ?, ?, ?)`

const selectRecent = `SELECT order_id, customer_name, email, product_name, quantity, COALESCE(note, '') AS note, created_at
FROM orders ORDER BY created_at DESC, order_id DESC LIMIT ?`

var dialects = map[string]dialect{
	Postgres: {
		createTable: `CREATE TABLE IF NOT EXISTS orders (
	order_id      BIGSERIAL PRIMARY KEY,
	customer_name TEXT NOT NULL,
	email         TEXT NOT NULL,
	product_name  TEXT NOT NULL,
	quantity      INTEGER NOT NULL CHECK (quantity > 0),
	note          TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		returning: true,
	},
	MySQL: {
		createTable: `CREATE TABLE IF NOT EXISTS orders (
	order_id      BIGINT AUTO_INCREMENT PRIMARY KEY,
	customer_name TEXT NOT NULL,
	email         TEXT NOT NULL,
	product_name  TEXT NOT NULL,
	quantity      INT NOT NULL CHECK (quantity > 0),
	note          TEXT,
	created_at    TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
)`,
	},
	SQLite: {
		// AUTOINCREMENT keeps ids of deleted rows from being handed out again.
		createTable: `CREATE TABLE IF NOT EXISTS orders (
	order_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_name TEXT NOT NULL,
	email         TEXT NOT NULL,
	product_name  TEXT NOT NULL,
	quantity      INTEGER NOT NULL CHECK (quantity > 0),
	note          TEXT,
	created_at    DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
)`,
	},
}
