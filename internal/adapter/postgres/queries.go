package postgres

const (
	createMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration_name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`
	selectAppliedMigrationsSQL = `SELECT migration_name FROM schema_migrations`
	insertMigrationSQL         = `INSERT INTO schema_migrations (migration_name) VALUES ($1)`
)

// Orders
const (
	nextOrderNumberSQL = `
		INSERT INTO order_counters (branch, last_value) VALUES ($1, 1)
		ON CONFLICT (branch) DO UPDATE SET last_value = order_counters.last_value + 1
		RETURNING last_value`

	insertOrderSQL = `
		INSERT INTO orders (id, branch, table_id, status, ordered_by, total_qty, total_amount, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)`

	selectOrderSQL = `
		SELECT id, branch, table_id, status, ordered_by, total_qty, total_amount::text, created_at, updated_at, version
		FROM orders
		WHERE id = $1`

	// Compare-and-set on version: zero rows means the order is gone or stale.
	updateOrderSQL = `
		UPDATE orders
		SET status = $2, total_qty = $3, total_amount = $4::numeric, updated_at = $5, version = version + 1
		WHERE id = $1 AND version = $6`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1 AND version = $2`

	selectItemsSQL = `
		SELECT id, order_id, item_code, item_name, item_group, template_code, qty,
		       rate::text, amount::text, status, station, notes, created_at, last_update_by, last_update_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`

	upsertItemSQL = `
		INSERT INTO order_items (id, order_id, position, item_code, item_name, item_group, template_code, qty,
		                         rate, amount, status, station, notes, created_at, last_update_by, last_update_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE
		SET position = EXCLUDED.position, qty = EXCLUDED.qty, rate = EXCLUDED.rate, amount = EXCLUDED.amount,
		    status = EXCLUDED.status, station = EXCLUDED.station, notes = EXCLUDED.notes,
		    last_update_by = EXCLUDED.last_update_by, last_update_at = EXCLUDED.last_update_at`

	deleteMissingItemsSQL = `DELETE FROM order_items WHERE order_id = $1 AND NOT (id = ANY($2))`

	insertStatusLogSQL = `
		INSERT INTO status_log (entity, entity_id, order_id, status, changed_by, changed_at, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectOrderIDByItemSQL = `SELECT order_id FROM order_items WHERE id = $1`

	selectQueueItemsSQL = `
		SELECT i.id, i.order_id, i.item_code, i.item_name, i.item_group, i.template_code, i.qty,
		       i.rate::text, i.amount::text, i.status, i.station, i.notes, i.created_at, i.last_update_by, i.last_update_at,
		       o.branch, o.table_id
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.branch = $1
		  AND i.status IN ('New', 'Cooking')
		  AND ($2 = '' OR COALESCE(NULLIF(i.station, ''), 'Unassigned') = $2)
		ORDER BY i.created_at, i.order_id, i.id`

	selectStatusHistorySQL = `
		SELECT id, entity, entity_id, order_id, status, changed_by, changed_at, note
		FROM status_log
		WHERE order_id = $1
		ORDER BY id`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

// Tables
const (
	selectTableSQL = `
		SELECT id, number, branch, seats, active, status, current_order
		FROM restaurant_tables
		WHERE id = $1`

	updateTableSQL = `
		UPDATE restaurant_tables
		SET status = $2, current_order = $3
		WHERE id = $1 AND current_order IS NOT DISTINCT FROM $4`

	tableExistsSQL = `SELECT EXISTS (SELECT 1 FROM restaurant_tables WHERE id = $1)`

	selectTablesByBranchSQL = `
		SELECT id, number, branch, seats, active, status, current_order
		FROM restaurant_tables
		WHERE branch = $1
		ORDER BY number`
)

// Stations
const (
	selectActiveStationsSQL = `
		SELECT s.id, s.name, s.branch, s.active, s.created_at, g.item_group, g.disabled
		FROM kitchen_stations s
		LEFT JOIN station_item_groups g ON g.station_id = s.id
		WHERE s.branch = $1 AND s.active
		ORDER BY s.created_at, s.seq, g.position, g.item_group`
)

// Catalog
const (
	selectMenuItemSQL = `
		SELECT code, name, item_group, rate::text, has_variants, COALESCE(variant_of, ''), min_qty, max_qty, disabled
		FROM menu_items
		WHERE code = $1`

	selectVariantsSQL = `
		SELECT code, name, item_group, rate::text, has_variants, COALESCE(variant_of, ''), min_qty, max_qty, disabled
		FROM menu_items
		WHERE variant_of = $1
		ORDER BY code`

	selectVariantAttributesSQL = `
		SELECT item_code, attribute, field_name, value
		FROM variant_attributes
		WHERE item_code = ANY($1)
		ORDER BY item_code, attribute`
)

// Access
const (
	selectBranchAccessSQL = `
		SELECT EXISTS (
			SELECT 1 FROM branch_access WHERE actor = $1 AND (branch = $2 OR branch = '*')
		)`
)
