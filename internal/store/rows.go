package store

import (
	"sort"
	"strings"

	"github.com/ncruces/go-sqlite3"
)

// RowSelector picks the rows a row-level operation targets: the rows whose
// Column equals Value. The zero selector matches every row.
type RowSelector struct {
	Column string
	Value  Value
}

// All reports whether the selector matches every row.
func (sel RowSelector) All() bool { return sel.Column == "" }

// ColumnSelector names the columns an operation reads. Empty means all
// columns, in table order.
type ColumnSelector []string

// ColumnDescriptors supplies new-row contents or row updates as a
// column-name to value mapping.
type ColumnDescriptors map[string]Value

// Row is one result row.
type Row map[string]Value

// DataSet is the result of RetrieveRows, in the table's natural order.
type DataSet []Row

// sortedColumns returns the descriptor column names in a stable order so
// the generated SQL is reproducible.
func sortedColumns(columns ColumnDescriptors) []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (sel RowSelector) clause() string {
	if sel.All() {
		return ""
	}
	return " WHERE " + quoteIdent(sel.Column) + " = ?"
}

// CreateRow inserts one row. Columns not named in columns take the engine's
// default for the table.
func (db *DB) CreateRow(tableName string, columns ColumnDescriptors) error {
	names := sortedColumns(columns)
	var quoted, marks []string
	var values []Value
	for _, name := range names {
		quoted = append(quoted, quoteIdent(name))
		marks = append(marks, "?")
		values = append(values, columns[name])
	}
	sql := "INSERT INTO " + quoteIdent(tableName) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	if len(names) == 0 {
		sql = "INSERT INTO " + quoteIdent(tableName) + " DEFAULT VALUES"
	}
	return db.withTransaction(func() error {
		return db.runBound(sql, values)
	})
}

// RetrieveRows returns, for every row matching rowSelector, the columns
// named by columnSelector, in the order the engine reports the rows.
func (db *DB) RetrieveRows(tableName string, rowSelector RowSelector, columnSelector ColumnSelector) (DataSet, error) {
	columns := []string(columnSelector)
	if len(columns) == 0 {
		for _, col := range db.tables[tableName].Columns {
			columns = append(columns, col.Name)
		}
	}
	quoted := make([]string, len(columns))
	for i, name := range columns {
		quoted[i] = quoteIdent(name)
	}
	sql := "SELECT " + strings.Join(quoted, ", ") + " FROM " + quoteIdent(tableName) + rowSelector.clause()

	statement, err := db.BuildStatement(sql)
	if err != nil {
		return nil, err
	}
	defer statement.Close()
	if !rowSelector.All() {
		if err := statement.BindParameter(0, rowSelector.Value); err != nil {
			return nil, err
		}
	}

	declared := declaredTypes(db.tables[tableName], columns)
	var results DataSet
	for {
		done, err := statement.Step()
		if err != nil {
			return nil, err
		}
		if done {
			return results, nil
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			row[name] = statement.fetchNative(i, declared[i])
		}
		results = append(results, row)
	}
}

// UpdateRows applies columns to every row matching rowSelector, returning
// the number of rows modified.
func (db *DB) UpdateRows(tableName string, rowSelector RowSelector, columns ColumnDescriptors) (int, error) {
	if len(columns) == 0 {
		return 0, nil
	}
	names := sortedColumns(columns)
	var assignments []string
	var values []Value
	for _, name := range names {
		assignments = append(assignments, quoteIdent(name)+" = ?")
		values = append(values, columns[name])
	}
	if !rowSelector.All() {
		values = append(values, rowSelector.Value)
	}
	sql := "UPDATE " + quoteIdent(tableName) + " SET " + strings.Join(assignments, ", ") + rowSelector.clause()

	var count int
	err := db.withTransaction(func() error {
		if err := db.runBound(sql, values); err != nil {
			return err
		}
		count = int(db.conn.Changes())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DestroyRows deletes every row matching rowSelector, returning the number
// deleted.
func (db *DB) DestroyRows(tableName string, rowSelector RowSelector) (int, error) {
	sql := "DELETE FROM " + quoteIdent(tableName) + rowSelector.clause()
	var values []Value
	if !rowSelector.All() {
		values = append(values, rowSelector.Value)
	}

	var count int
	err := db.withTransaction(func() error {
		if err := db.runBound(sql, values); err != nil {
			return err
		}
		count = int(db.conn.Changes())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// runBound compiles sql, binds values positionally, and steps it to
// completion.
func (db *DB) runBound(sql string, values []Value) error {
	statement, err := db.BuildStatement(sql)
	if err != nil {
		return err
	}
	defer statement.Close()
	if err := statement.BindParameters(values...); err != nil {
		return err
	}
	for {
		done, err := statement.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// declaredTypes resolves the declared engine type of each selected column,
// used to decide how results come back as Values.
func declaredTypes(definition TableDefinition, columns []string) []string {
	types := make([]string, len(columns))
	for i, name := range columns {
		for _, col := range definition.Columns {
			if col.Name == name {
				types[i] = col.Type
				break
			}
		}
	}
	return types
}

// fetchNative converts the current row's column i into a Value, trusting
// the engine's runtime type except for declared BOOLEAN columns, which the
// engine stores as integers.
func (s *Statement) fetchNative(i int, declaredType string) Value {
	if strings.Contains(strings.ToUpper(declaredType), "BOOL") {
		if s.stmt.ColumnType(i) == sqlite3.NULL {
			return NullValue()
		}
		return BooleanValue(s.stmt.ColumnInt64(i) != 0)
	}
	switch s.stmt.ColumnType(i) {
	case sqlite3.INTEGER:
		return IntegerValue(s.stmt.ColumnInt64(i))
	case sqlite3.FLOAT:
		return RealValue(s.stmt.ColumnFloat(i))
	case sqlite3.TEXT, sqlite3.BLOB:
		return TextValue(s.stmt.ColumnText(i))
	default:
		return NullValue()
	}
}
