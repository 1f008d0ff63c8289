package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sample() *Storage {
	return New().
		Add("Host", "example.com").
		Add("Connection", "keep-alive").
		Add("Set-Cookie", "a=1").
		Add("set-cookie", "b=2")
}

func TestStorage_GetIsCaseInsensitive(t *testing.T) {
	s := sample()

	value, found := s.Get("HOST")
	require.True(t, found)
	require.Equal(t, "example.com", value)
}

func TestStorage_Values(t *testing.T) {
	s := sample()
	require.ElementsMatch(t, []string{"a=1", "b=2"}, s.Values("Set-Cookie"))
}

func TestStorage_SetReplacesAllPriorValues(t *testing.T) {
	s := sample()
	s.Set("Set-Cookie", "only=1")

	require.Equal(t, []string{"only=1"}, s.Values("Set-Cookie"))
}

func TestStorage_SetAppendsWhenAbsent(t *testing.T) {
	s := New()
	s.Set("Connection", "close")

	require.Equal(t, "close", s.Value("Connection"))
}

func TestStorage_Delete(t *testing.T) {
	s := sample()
	s.Delete("Set-Cookie")

	require.False(t, s.Has("Set-Cookie"))
	require.Equal(t, 2, s.Len())
}

func TestStorage_ClearIsReusable(t *testing.T) {
	s := sample()
	s.Clear()

	require.True(t, s.Empty())
	s.Add("X", "y")
	require.Equal(t, "y", s.Value("x"))
}

func TestStorage_Keys(t *testing.T) {
	s := sample()
	require.Equal(t, []string{"Host", "Connection", "Set-Cookie"}, s.Keys())
}
