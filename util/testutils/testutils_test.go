package testutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/strata/util/testutils"
)

func TestGetOpenPort(t *testing.T) {
	_, err := testutils.GetOpenPort()
	require.NoError(t, err)
}

func TestFlatten(t *testing.T) {
	cases := []struct {
		assertion string
		in        [][]int
		expected  []int
	}{
		{
			"empty",
			[][]int{{}},
			nil,
		},
		{
			"single",
			[][]int{{1}},
			[]int{1},
		},
		{
			"multiple",
			[][]int{{1, 2}, {3}},
			[]int{1, 2, 3},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, testutils.Flatten(c.in...))
		})
	}
}

func TestU8b(t *testing.T) {
	cases := []struct {
		assertion string
		in        uint8
		expected  []byte
	}{
		{
			"zero",
			0,
			[]byte{0},
		},
		{
			"one",
			1,
			[]byte{1},
		},
		{
			"max",
			255,
			[]byte{255},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, testutils.U8b(c.in))
		})
	}
}

func TestU32b(t *testing.T) {
	cases := []struct {
		assertion string
		in        uint32
		expected  []byte
	}{
		{
			"zero",
			0,
			[]byte{0, 0, 0, 0},
		},
		{
			"one",
			1,
			[]byte{1, 0, 0, 0},
		},
		{
			"max",
			4294967295,
			[]byte{255, 255, 255, 255},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, testutils.U32b(c.in))
		})
	}
}

func TestU64b(t *testing.T) {
	cases := []struct {
		assertion string
		in        uint64
		expected  []byte
	}{
		{
			"zero",
			0,
			[]byte{0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			"one",
			1,
			[]byte{1, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			"max",
			18446744073709551615,
			[]byte{255, 255, 255, 255, 255, 255, 255, 255},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, testutils.U64b(c.in))
		})
	}
}
