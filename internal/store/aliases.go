package store

// Workspace aliases are plain key-value rows; the workspace resolver reads
// them through the AliasStore interface.

// Aliases returns all alias definitions.
func (d *DB) Aliases() (map[string]string, error) {
	rows, err := d.db.Query("SELECT name, pattern FROM aliases ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, pattern string
		if err := rows.Scan(&name, &pattern); err != nil {
			return nil, err
		}
		out[name] = pattern
	}
	return out, rows.Err()
}

// SetAlias creates or replaces an alias.
func (d *DB) SetAlias(name, pattern string) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO aliases (name, pattern) VALUES (?, ?)",
		name, pattern,
	)
	return err
}

// DeleteAlias removes an alias. Deleting a missing alias is not an error.
func (d *DB) DeleteAlias(name string) error {
	_, err := d.db.Exec("DELETE FROM aliases WHERE name = ?", name)
	return err
}
