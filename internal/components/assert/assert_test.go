package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type greeter interface{ Greet() string }

type english struct{}

func (*english) Greet() string { return "hello" }

func TestNotNil(t *testing.T) {
	var typed *english
	var iface greeter = typed

	require.Panics(t, func() { NotNil(nil) })
	require.Panics(t, func() { NotNil(iface) })
	require.Panics(t, func() { NotNil(map[string]int(nil)) })
	require.NotPanics(t, func() { NotNil(&english{}) })
	require.NotPanics(t, func() { NotNil(struct{}{}) })
	require.NotPanics(t, func() { NotNil(0) })
}

func TestNotEmptyStr(t *testing.T) {
	require.Panics(t, func() { NotEmptyStr("") })
	require.NotPanics(t, func() { NotEmptyStr("alice") })
}
