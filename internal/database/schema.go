package database

// Placeholders {{pk}}, {{ts}} and {{real}} are replaced per driver. Dates that
// are only compared by day (week_start, shift_date) are stored as YYYY-MM-DD text.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id {{pk}},
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'staff',
		hourly_rate {{real}} NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		last_login_at {{ts}}
	);`,

	`CREATE TABLE IF NOT EXISTS ingredients (
		id {{pk}},
		name TEXT UNIQUE NOT NULL,
		unit TEXT NOT NULL,
		quantity {{real}} NOT NULL DEFAULT 0,
		min_quantity {{real}} NOT NULL DEFAULT 0,
		cost_per_unit {{real}} NOT NULL DEFAULT 0,
		supplier TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS inventory_transactions (
		id {{pk}},
		ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
		change {{real}} NOT NULL,
		kind TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS recipes (
		id {{pk}},
		name TEXT UNIQUE NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		price {{real}} NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS recipe_ingredients (
		recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE RESTRICT,
		quantity {{real}} NOT NULL,
		PRIMARY KEY (recipe_id, ingredient_id)
	);`,

	`CREATE TABLE IF NOT EXISTS sales (
		id {{pk}},
		employee_id INTEGER REFERENCES employees(id) ON DELETE SET NULL,
		total {{real}} NOT NULL,
		payment_method TEXT NOT NULL,
		created_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS sale_items (
		id {{pk}},
		sale_id INTEGER NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE RESTRICT,
		quantity INTEGER NOT NULL,
		unit_price {{real}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS shifts (
		id {{pk}},
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		shift_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		tasks_completed INTEGER NOT NULL DEFAULT 0,
		total_tasks INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS weekly_performance (
		id {{pk}},
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		week_start TEXT NOT NULL,
		tasks_completed INTEGER NOT NULL DEFAULT 0,
		total_tasks INTEGER NOT NULL DEFAULT 0,
		reward TEXT,
		scored_at {{ts}},
		UNIQUE (employee_id, week_start)
	);`,

	`CREATE TABLE IF NOT EXISTS employee_points (
		employee_id INTEGER PRIMARY KEY REFERENCES employees(id) ON DELETE CASCADE,
		total_points INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		updated_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS badges (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		requirement_type TEXT NOT NULL,
		requirement_value {{real}} NOT NULL,
		points_value INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS employee_badges (
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		badge_id TEXT NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
		awarded_at {{ts}} NOT NULL,
		PRIMARY KEY (employee_id, badge_id)
	);`,

	`CREATE TABLE IF NOT EXISTS reward_history (
		id {{pk}},
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		points_earned INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		week_start TEXT,
		created_at {{ts}} NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id {{pk}},
		kind TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		ingredient_id INTEGER REFERENCES ingredients(id) ON DELETE CASCADE,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL,
		resolved_at {{ts}}
	);`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_inventory_tx_ingredient ON inventory_transactions(ingredient_id);`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_tx_created ON inventory_transactions(created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created ON sales(created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_employee_date ON shifts(employee_id, shift_date);`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_week ON weekly_performance(week_start);`,
	`CREATE INDEX IF NOT EXISTS idx_reward_history_employee ON reward_history(employee_id);`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_open ON alerts(resolved, ingredient_id);`,
}
