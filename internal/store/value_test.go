package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myuser/memberstore/internal/store"
)

func TestValueTags(t *testing.T) {
	assert.Equal(t, store.TypeNull, store.NullValue().Type())
	assert.Equal(t, store.TypeText, store.TextValue("x").Type())
	assert.Equal(t, store.TypeInteger, store.IntegerValue(7).Type())
	assert.Equal(t, store.TypeReal, store.RealValue(2.5).Type())
	assert.Equal(t, store.TypeBoolean, store.BooleanValue(true).Type())
	assert.True(t, store.NullValue().IsNull())
	assert.False(t, store.TextValue("").IsNull())
}

func TestValueExtraction(t *testing.T) {
	text, err := store.TextValue("hello").AsText()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	n, err := store.IntegerValue(-42).AsInteger()
	require.NoError(t, err)
	assert.EqualValues(t, -42, n)

	r, err := store.RealValue(4.321).AsReal()
	require.NoError(t, err)
	assert.Equal(t, 4.321, r)

	b, err := store.BooleanValue(false).AsBoolean()
	require.NoError(t, err)
	assert.False(t, b)
}

func TestValueExtractionRejectsWrongVariant(t *testing.T) {
	_, err := store.TextValue("hello").AsInteger()
	kind, ok := store.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, store.KindTypeMismatch, kind)

	_, err = store.NullValue().AsText()
	kind, ok = store.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, store.KindTypeMismatch, kind)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, store.NullValue().Equal(store.NullValue()))
	assert.True(t, store.TextValue("a").Equal(store.TextValue("a")))
	assert.False(t, store.TextValue("a").Equal(store.TextValue("b")))
	assert.False(t, store.IntegerValue(1).Equal(store.BooleanValue(true)))
	assert.True(t, store.RealValue(1.5).Equal(store.RealValue(1.5)))
}
