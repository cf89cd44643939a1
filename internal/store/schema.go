package store

import (
	"strings"
)

// ColumnDefinition describes one column of a table. Type is the engine-level
// type name. Column order within a table is significant: it shapes generated
// DDL and row layout.
type ColumnDefinition struct {
	Name  string
	Type  string
	IsKey bool
}

// TableDefinition is the ordered column list of one table.
type TableDefinition struct {
	Columns []ColumnDefinition
}

// TableDefinitions maps table name to definition. It mirrors the engine's
// own catalog; the catalog is the source of truth.
type TableDefinitions map[string]TableDefinition

// quoteIdent makes an identifier safe to splice into SQL text. The engine
// cannot bind identifiers as parameters, so schema operations have to build
// DDL textually; all such splicing goes through here. Values never do.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnClause renders one column for a CREATE TABLE body, without the key
// flag (keys are declared in a table-level PRIMARY KEY clause).
func columnClause(col ColumnDefinition) string {
	return quoteIdent(col.Name) + " " + col.Type
}

// createTableSQL builds the DDL for a table: columns in definition order,
// with exactly the IsKey columns in the primary key.
func createTableSQL(tableName string, definition TableDefinition) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(quoteIdent(tableName))
	sb.WriteString(" (")
	var keys []string
	for i, col := range definition.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(columnClause(col))
		if col.IsKey {
			keys = append(keys, quoteIdent(col.Name))
		}
	}
	if len(keys) > 0 {
		sb.WriteString(", PRIMARY KEY (")
		sb.WriteString(strings.Join(keys, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}

// CreateTable emits a single DDL statement creating the table and refreshes
// the schema cache.
func (db *DB) CreateTable(tableName string, definition TableDefinition) error {
	if err := db.ExecuteStatement(createTableSQL(tableName, definition)); err != nil {
		return err
	}
	return db.refreshSchema()
}

// DescribeTables returns the cached schema snapshot, as of the last refresh.
func (db *DB) DescribeTables() TableDefinitions {
	snapshot := make(TableDefinitions, len(db.tables))
	for name, def := range db.tables {
		cols := make([]ColumnDefinition, len(def.Columns))
		copy(cols, def.Columns)
		snapshot[name] = TableDefinition{Columns: cols}
	}
	return snapshot
}

// RenameTable renames a table with a single DDL statement.
func (db *DB) RenameTable(oldTableName, newTableName string) error {
	sql := "ALTER TABLE " + quoteIdent(oldTableName) + " RENAME TO " + quoteIdent(newTableName)
	if err := db.ExecuteStatement(sql); err != nil {
		return err
	}
	return db.refreshSchema()
}

// AddColumn appends a column to a table with a single DDL statement.
func (db *DB) AddColumn(tableName string, columnDefinition ColumnDefinition) error {
	sql := "ALTER TABLE " + quoteIdent(tableName) + " ADD COLUMN " + columnClause(columnDefinition)
	if columnDefinition.IsKey {
		sql += " PRIMARY KEY"
	}
	if err := db.ExecuteStatement(sql); err != nil {
		return err
	}
	return db.refreshSchema()
}

// DestroyColumn removes one column from a table. The engine cannot drop a
// column in place, so the table is rebuilt: copy the surviving columns out
// to a scratch table, drop and recreate the original with the reduced
// definition, copy the rows back, and drop the scratch table. The whole
// sequence runs in one transaction; any failure leaves the original table
// untouched. Destroying an absent column or table is a no-op.
func (db *DB) DestroyColumn(tableName, columnName string) error {
	definition, ok := db.tables[tableName]
	if !ok {
		return nil
	}
	var survivors []ColumnDefinition
	found := false
	for _, col := range definition.Columns {
		if col.Name == columnName {
			found = true
			continue
		}
		survivors = append(survivors, col)
	}
	if !found {
		return nil
	}

	scratch := tableName + "_rebuild"
	var names []string
	for _, col := range survivors {
		names = append(names, quoteIdent(col.Name))
	}
	columnList := strings.Join(names, ", ")
	reduced := TableDefinition{Columns: survivors}

	err := db.withTransaction(func() error {
		steps := []string{
			createTableSQL(scratch, TableDefinition{Columns: stripKeys(survivors)}),
			"INSERT INTO " + quoteIdent(scratch) + " (" + columnList + ") SELECT " +
				columnList + " FROM " + quoteIdent(tableName),
			"DROP TABLE " + quoteIdent(tableName),
			createTableSQL(tableName, reduced),
			"INSERT INTO " + quoteIdent(tableName) + " (" + columnList + ") SELECT " +
				columnList + " FROM " + quoteIdent(scratch),
			"DROP TABLE " + quoteIdent(scratch),
		}
		for _, step := range steps {
			if err := db.ExecuteStatement(step); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return db.refreshSchema()
}

// stripKeys drops the key flags for the scratch copy so the intermediate
// table keeps the rows in scan order instead of key order.
func stripKeys(cols []ColumnDefinition) []ColumnDefinition {
	stripped := make([]ColumnDefinition, len(cols))
	for i, col := range cols {
		col.IsKey = false
		stripped[i] = col
	}
	return stripped
}

// DestroyTable drops the table outright.
func (db *DB) DestroyTable(tableName string) error {
	if err := db.ExecuteStatement("DROP TABLE " + quoteIdent(tableName)); err != nil {
		return err
	}
	return db.refreshSchema()
}

// refreshSchema rebuilds the TableDefinitions cache from the live catalog.
// Called on open, after every schema mutation, and after snapshot install.
func (db *DB) refreshSchema() error {
	tables := make(TableDefinitions)

	list, _, err := db.conn.Prepare(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return newError(KindCompile, "describe tables: %v", err)
	}
	var names []string
	for list.Step() {
		names = append(names, list.ColumnText(0))
	}
	stepErr := list.Err()
	if err := list.Close(); err != nil {
		return newError(KindExecute, "describe tables: %v", err)
	}
	if stepErr != nil {
		return newError(KindExecute, "describe tables: %v", stepErr)
	}

	for _, name := range names {
		info, _, err := db.conn.Prepare("PRAGMA table_info(" + quoteIdent(name) + ")")
		if err != nil {
			return newError(KindCompile, "describe %s: %v", name, err)
		}
		var def TableDefinition
		for info.Step() {
			// table_info columns: cid, name, type, notnull, dflt_value, pk
			def.Columns = append(def.Columns, ColumnDefinition{
				Name:  info.ColumnText(1),
				Type:  info.ColumnText(2),
				IsKey: info.ColumnInt64(5) > 0,
			})
		}
		stepErr := info.Err()
		if err := info.Close(); err != nil {
			return newError(KindExecute, "describe %s: %v", name, err)
		}
		if stepErr != nil {
			return newError(KindExecute, "describe %s: %v", name, stepErr)
		}
		tables[name] = def
	}

	db.tables = tables
	return nil
}
