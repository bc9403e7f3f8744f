package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250901-000000",
		Description: "Initial schema",
		Up: []string{
			// Users - credits is the ledger balance; a CHECK keeps it
			// non-negative even if a conditional update is bypassed
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				credits INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
				role TEXT NOT NULL DEFAULT 'NORMAL',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,

			// Generations - one creative job per row
			`CREATE TABLE IF NOT EXISTS generations (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				type TEXT NOT NULL,
				prompt TEXT NOT NULL,
				negative_prompt TEXT,
				input_image TEXT,
				parameters_json TEXT,
				credits_used INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'PENDING',
				backend_job_id TEXT,
				backend_url TEXT,
				image_url TEXT,
				video_url TEXT,
				error_message TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_generations_user_id ON generations(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_generations_status ON generations(status)`,
			`CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at)`,

			// Backend configs - at most one row active; enforced by a
			// partial unique index in addition to transactional activation
			`CREATE TABLE IF NOT EXISTS backend_configs (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				api_url TEXT NOT NULL,
				api_key TEXT,
				is_active INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_backend_configs_active
				ON backend_configs(is_active) WHERE is_active = 1`,

			// Payments - order_ref is the merchant reference (out_trade_no)
			`CREATE TABLE IF NOT EXISTS payments (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				order_ref TEXT UNIQUE NOT NULL,
				amount REAL NOT NULL,
				credits INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'PENDING',
				payment_method TEXT NOT NULL,
				gateway_trade_no TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_order_ref ON payments(order_ref)`,

			// Orders - created atomically with the linked payment
			`CREATE TABLE IF NOT EXISTS orders (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				total_amount REAL NOT NULL,
				credits INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'PENDING',
				payment_id TEXT REFERENCES payments(id),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_payment_id ON orders(payment_id)`,
		},
	})
}
