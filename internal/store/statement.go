package store

import (
	"github.com/ncruces/go-sqlite3"
)

// Statement is a compiled, parameterized SQL statement. It is produced by
// DB.BuildStatement and must be Closed when no longer needed; it must not
// outlive the DB that built it. A Statement is not safe for concurrent use.
type Statement struct {
	stmt *sqlite3.Stmt
	conn *sqlite3.Conn // non-owning, for error text only

	hasRow bool
	failed bool
}

// BindParameter binds a zero-based positional parameter. The engine's 1-based
// indexing stays behind this call. Binding a NULL value clears any prior
// binding at that index.
func (s *Statement) BindParameter(index int, value Value) error {
	param := index + 1
	var err error
	switch value.Type() {
	case TypeText:
		text, _ := value.AsText()
		err = s.stmt.BindText(param, text)
	case TypeInteger:
		i, _ := value.AsInteger()
		err = s.stmt.BindInt64(param, i)
	case TypeReal:
		r, _ := value.AsReal()
		err = s.stmt.BindFloat(param, r)
	case TypeBoolean:
		b, _ := value.AsBoolean()
		err = s.stmt.BindBool(param, b)
	case TypeNull:
		err = s.stmt.BindNull(param)
	}
	if err != nil {
		return newError(KindExecute, "bind parameter %d: %v", index, err)
	}
	return nil
}

// BindParameters binds values positionally as parameters 0..len(values)-1.
func (s *Statement) BindParameters(values ...Value) error {
	for i, value := range values {
		if err := s.BindParameter(i, value); err != nil {
			return err
		}
	}
	return nil
}

// FetchColumn reads a column from the current row, converting the engine's
// native representation to expectedType. A SQL NULL column yields the NULL
// variant no matter what type was requested; the null test runs before any
// conversion. Valid only while a row is available.
func (s *Statement) FetchColumn(index int, expectedType ValueType) (Value, error) {
	if !s.hasRow {
		return Value{}, newError(KindContract, "no row to fetch column %d from", index)
	}
	if s.stmt.ColumnType(index) == sqlite3.NULL {
		return NullValue(), nil
	}
	switch expectedType {
	case TypeText:
		return TextValue(s.stmt.ColumnText(index)), nil
	case TypeInteger:
		return IntegerValue(s.stmt.ColumnInt64(index)), nil
	case TypeReal:
		return RealValue(s.stmt.ColumnFloat(index)), nil
	case TypeBoolean:
		return BooleanValue(s.stmt.ColumnInt64(index) != 0), nil
	default:
		return NullValue(), nil
	}
}

// ColumnCount returns the number of result columns.
func (s *Statement) ColumnCount() int {
	return s.stmt.ColumnCount()
}

// ColumnName returns the name of result column index.
func (s *Statement) ColumnName(index int) string {
	return s.stmt.ColumnName(index)
}

// ColumnValue reads a column from the current row as whatever the engine
// reports its runtime type to be, for callers that have no expected type in
// hand.
func (s *Statement) ColumnValue(index int) (Value, error) {
	if !s.hasRow {
		return Value{}, newError(KindContract, "no row to fetch column %d from", index)
	}
	return s.fetchNative(index, ""), nil
}

// Reset returns the statement to its ready state without clearing bound
// parameter values, allowing one compiled plan to run repeatedly with fresh
// bindings.
func (s *Statement) Reset() error {
	s.hasRow = false
	s.failed = false
	if err := s.stmt.Reset(); err != nil {
		return newError(KindExecute, "reset: %v", err)
	}
	return nil
}

// Step advances the statement. done=false with a nil error means a row is
// available for FetchColumn; done=true with a nil error means normal
// completion; done=true with an error means the engine rejected the
// operation and the statement must not be stepped again without Reset.
func (s *Statement) Step() (done bool, err error) {
	if s.failed {
		return true, newError(KindContract, "stepping a failed statement")
	}
	if s.stmt.Step() {
		s.hasRow = true
		return false, nil
	}
	s.hasRow = false
	if stepErr := s.stmt.Err(); stepErr != nil {
		s.failed = true
		return true, newError(KindExecute, "%v", stepErr)
	}
	return true, nil
}

// Close finalizes the statement. Further use is invalid.
func (s *Statement) Close() error {
	s.hasRow = false
	if err := s.stmt.Close(); err != nil {
		return newError(KindExecute, "finalize: %v", err)
	}
	return nil
}
