// Package command defines the replicated command log format: every mutation
// of a member's store travels through the consensus log as one encoded
// Command, and every member applies the same commands in the same order.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/blastrain/vitess-sqlparser/sqlparser"

	"github.com/myuser/memberstore/internal/store"
)

// Op names a replicated operation.
type Op string

const (
	OpExec          Op = "exec"
	OpCreateRow     Op = "create_row"
	OpUpdateRows    Op = "update_rows"
	OpDestroyRows   Op = "destroy_rows"
	OpCreateTable   Op = "create_table"
	OpRenameTable   Op = "rename_table"
	OpAddColumn     Op = "add_column"
	OpDestroyColumn Op = "destroy_column"
	OpDestroyTable  Op = "destroy_table"
)

// Column is the wire form of a column definition.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Key  bool   `json:"key,omitempty"`
}

// Selector is the wire form of a row selector.
type Selector struct {
	Column string    `json:"column"`
	Value  WireValue `json:"value"`
}

// Command is one entry in the replicated log.
type Command struct {
	Op       Op                   `json:"op"`
	Table    string               `json:"table,omitempty"`
	NewTable string               `json:"new_table,omitempty"`
	SQL      string               `json:"sql,omitempty"`
	Columns  []Column             `json:"columns,omitempty"`
	Column   string               `json:"column,omitempty"`
	Values   map[string]WireValue `json:"values,omitempty"`
	Where    *Selector            `json:"where,omitempty"`
}

// Encode serializes a command for the log.
func Encode(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// Decode parses a log entry back into a command.
func Decode(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	return cmd, nil
}

// Validate rejects malformed commands before they are proposed, so garbage
// never reaches the replicated log. Raw SQL is run through the parser here;
// the engine still has the final say at apply time.
func Validate(cmd Command) error {
	switch cmd.Op {
	case OpExec:
		if _, err := sqlparser.Parse(cmd.SQL); err != nil {
			return fmt.Errorf("invalid SQL: %w", err)
		}
		return nil
	case OpRenameTable:
		if cmd.Table == "" {
			return fmt.Errorf("%s: missing table", cmd.Op)
		}
		if cmd.NewTable == "" {
			return fmt.Errorf("%s: missing new table name", cmd.Op)
		}
		return nil
	case OpCreateRow, OpUpdateRows, OpDestroyRows, OpCreateTable,
		OpAddColumn, OpDestroyColumn, OpDestroyTable:
		if cmd.Table == "" {
			return fmt.Errorf("%s: missing table", cmd.Op)
		}
		return nil
	default:
		return fmt.Errorf("unknown op: %q", cmd.Op)
	}
}

// ValidateQuery admits only read statements. Local queries bypass the
// replicated log, so anything that writes would silently diverge this
// member from the rest of the cluster.
func ValidateQuery(sql string) error {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return fmt.Errorf("invalid SQL: %w", err)
	}
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return nil
	default:
		return fmt.Errorf("only SELECT queries may run against the local store")
	}
}

// Apply executes one command against the store.
func Apply(db *store.DB, cmd Command) error {
	switch cmd.Op {
	case OpExec:
		return db.ExecuteStatement(cmd.SQL)
	case OpCreateRow:
		return db.CreateRow(cmd.Table, descriptors(cmd.Values))
	case OpUpdateRows:
		_, err := db.UpdateRows(cmd.Table, selector(cmd.Where), descriptors(cmd.Values))
		return err
	case OpDestroyRows:
		_, err := db.DestroyRows(cmd.Table, selector(cmd.Where))
		return err
	case OpCreateTable:
		return db.CreateTable(cmd.Table, definition(cmd.Columns))
	case OpRenameTable:
		return db.RenameTable(cmd.Table, cmd.NewTable)
	case OpAddColumn:
		if len(cmd.Columns) != 1 {
			return fmt.Errorf("add_column: want exactly one column, got %d", len(cmd.Columns))
		}
		col := cmd.Columns[0]
		return db.AddColumn(cmd.Table, store.ColumnDefinition{Name: col.Name, Type: col.Type, IsKey: col.Key})
	case OpDestroyColumn:
		return db.DestroyColumn(cmd.Table, cmd.Column)
	case OpDestroyTable:
		return db.DestroyTable(cmd.Table)
	default:
		return fmt.Errorf("unknown op: %q", cmd.Op)
	}
}

func descriptors(values map[string]WireValue) store.ColumnDescriptors {
	columns := make(store.ColumnDescriptors, len(values))
	for name, value := range values {
		columns[name] = value.Value()
	}
	return columns
}

func selector(where *Selector) store.RowSelector {
	if where == nil {
		return store.RowSelector{}
	}
	return store.RowSelector{Column: where.Column, Value: where.Value.Value()}
}

func definition(columns []Column) store.TableDefinition {
	def := store.TableDefinition{Columns: make([]store.ColumnDefinition, len(columns))}
	for i, col := range columns {
		def.Columns[i] = store.ColumnDefinition{Name: col.Name, Type: col.Type, IsKey: col.Key}
	}
	return def
}
