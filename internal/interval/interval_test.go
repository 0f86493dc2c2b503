package interval

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestParse_Valid(t *testing.T) {
	cases := []struct {
		in           string
		lower, upper int
	}{
		{"[ 90 - 100% ]", 90, 100},
		{"] 0 - 10% [", 0, 10},
		{"[ 80 - 90% [", 80, 90},
		{"[ 30 - 40% [", 30, 40},
		{"]0 - 5%[", 0, 5},
		{"  [50-60%]  ", 50, 60},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			lower, upper, err := Parse(nil, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.lower, lower)
			assert.Equal(t, tc.upper, upper)
		})
	}
}

func TestParse_None(t *testing.T) {
	log, logs := observed()
	lower, upper, err := Parse(log, "None")
	require.NoError(t, err)
	assert.Equal(t, 0, lower)
	assert.Equal(t, 0, upper)
	assert.Zero(t, logs.Len())
}

func TestParse_NonString(t *testing.T) {
	for _, v := range []any{42, 3.5, nil, true} {
		log, logs := observed()
		lower, upper, err := Parse(log, v)
		require.NoError(t, err)
		assert.Equal(t, 0, lower)
		assert.Equal(t, 0, upper)

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, fmt.Sprint(v), entries[0].ContextMap()["input"])
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"garbage", ErrTokenCount},
		{"[ 1 - 2 - 3% ]", ErrTokenCount},
		{"", ErrTokenCount},
		{"[ a - 10% ]", strconv.ErrSyntax},
		{"[ 10 - b% ]", strconv.ErrSyntax},
		{"none", ErrTokenCount},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			log, logs := observed()
			_, _, err := Parse(log, tc.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.in, pe.Input)

			entries := logs.FilterMessage("interval: unable to convert").All()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		})
	}
}

func TestParse_BracketStyleDoesNotMatter(t *testing.T) {
	brackets := []string{"[", "]", ""}
	for a := 0; a <= 100; a += 10 {
		b := a + 10
		for _, open := range brackets {
			for _, closing := range brackets {
				in := fmt.Sprintf("%s %d - %d%% %s", open, a, b, closing)
				lower, upper, err := Parse(nil, in)
				require.NoError(t, err, in)
				assert.Equal(t, a, lower, in)
				assert.Equal(t, b, upper, in)
			}
		}
	}
}

func TestParseBounds(t *testing.T) {
	b, err := ParseBounds(nil, "[ 90 - 100% ]")
	require.NoError(t, err)
	assert.Equal(t, Bounds{Lower: 90, Upper: 100}, b)

	b, err = ParseBounds(nil, 7)
	require.NoError(t, err)
	assert.Equal(t, Bounds{}, b)

	_, err = ParseBounds(nil, "garbage")
	assert.Error(t, err)
}

func TestBounds_Indicator(t *testing.T) {
	ind := Bounds{Lower: 0, Upper: 10}.Indicator()
	assert.InDelta(t, 0.0, ind.Lower, 1e-9)
	assert.InDelta(t, 0.05, ind.Mean, 1e-9)
	assert.InDelta(t, 0.1, ind.Upper, 1e-9)

	zero := Bounds{}.Indicator()
	assert.Zero(t, zero.Mean)
}
