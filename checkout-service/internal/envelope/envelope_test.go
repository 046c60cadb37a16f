package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstString_OrderMatters(t *testing.T) {
	b, err := Decode([]byte(`{"code":"B","detail":{"code":"A"}}`))
	require.NoError(t, err)

	v, rule, ok := b.FirstString([]Rule{At("detail", "code"), At("code")})
	assert.True(t, ok)
	assert.Equal(t, "A", v)
	assert.Equal(t, "detail.code", rule.Name)

	v, _, ok = b.FirstString([]Rule{At("code"), At("detail", "code")})
	assert.True(t, ok)
	assert.Equal(t, "B", v)
}

func TestString_SkipsObjectsAndEmpty(t *testing.T) {
	b, err := Decode([]byte(`{"detail":{"x":1},"empty":"","n":42}`))
	require.NoError(t, err)

	_, ok := b.String("detail")
	assert.False(t, ok)
	_, ok = b.String("empty")
	assert.False(t, ok)
	v, ok := b.String("n")
	assert.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestFirstObject_RootThenNested(t *testing.T) {
	top, err := Decode([]byte(`{"payment_status":"PAID"}`))
	require.NoError(t, err)
	nested, err := Decode([]byte(`{"payment":{"payment_status":"PENDING"}}`))
	require.NoError(t, err)
	rules := []Rule{Root, At("payment")}

	obj, rule, ok := top.FirstObject(rules, "payment_status")
	require.True(t, ok)
	assert.Equal(t, "root", rule.Name)
	assert.Equal(t, "PAID", obj["payment_status"])

	obj, rule, ok = nested.FirstObject(rules, "payment_status")
	require.True(t, ok)
	assert.Equal(t, "payment", rule.Name)
	assert.Equal(t, "PENDING", obj["payment_status"])

	_, _, ok = Body{}.FirstObject(rules, "payment_status")
	assert.False(t, ok)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.ErrorContains(t, err, "decode envelope")
}
