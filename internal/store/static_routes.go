package store

import "fmt"

// StaticRoute is a durable route entry. The baseline IpLayer only
// distinguishes local-subnet from default-gateway (spec §4.4 NextHop),
// so these rows are informational/management-surface today and are not
// yet consulted by NextHop; see DESIGN.md.
type StaticRoute struct {
	ID          int64
	Destination string
	Netmask     string
	Gateway     string
}

// AddStaticRoute inserts a static route, ignoring duplicates of the
// same destination/netmask pair.
func (db *DB) AddStaticRoute(destination, netmask, gateway string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO static_routes (destination, netmask, gateway, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(destination, netmask) DO UPDATE SET
			gateway = excluded.gateway,
			updated_at = CURRENT_TIMESTAMP
	`, destination, netmask, gateway)
	if err != nil {
		return fmt.Errorf("store: add static route %s/%s: %w", destination, netmask, err)
	}
	return nil
}

// RemoveStaticRoute deletes a static route by destination/netmask.
func (db *DB) RemoveStaticRoute(destination, netmask string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec("DELETE FROM static_routes WHERE destination = ? AND netmask = ?", destination, netmask)
	if err != nil {
		return fmt.Errorf("store: remove static route %s/%s: %w", destination, netmask, err)
	}
	return nil
}

// ListStaticRoutes retrieves every static route.
func (db *DB) ListStaticRoutes() ([]StaticRoute, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query("SELECT id, destination, netmask, gateway FROM static_routes ORDER BY destination")
	if err != nil {
		return nil, fmt.Errorf("store: query static routes: %w", err)
	}
	defer rows.Close()

	var routes []StaticRoute
	for rows.Next() {
		var r StaticRoute
		if err := rows.Scan(&r.ID, &r.Destination, &r.Netmask, &r.Gateway); err != nil {
			return nil, fmt.Errorf("store: scan static route row: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
