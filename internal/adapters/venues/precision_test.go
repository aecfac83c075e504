package venues

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/pkg/errors"
)

func TestDecimalPlacesFromTickPowersOfTen(t *testing.T) {
	for n := 0; n <= 8; n++ {
		tick := decimal.New(1, int32(-n))
		places, err := DecimalPlacesFromTick(tick)
		require.NoError(t, err, "tick %s", tick)
		assert.Equal(t, int32(n), places, "tick %s", tick)
	}
}

func TestDecimalPlacesFromTickNonPowerOfTen(t *testing.T) {
	tests := []struct {
		tick   string
		places int32
	}{
		{"0.5", 1},
		{"0.25", 1},
		{"0.005", 3},
		{"1", 0},
		{"2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.tick, func(t *testing.T) {
			places, err := DecimalPlacesFromTick(decimal.RequireFromString(tt.tick))
			require.NoError(t, err)
			assert.Equal(t, tt.places, places)
		})
	}
}

func TestDecimalPlacesFromTickRejectsNonPositive(t *testing.T) {
	for _, tick := range []string{"0", "-0.01"} {
		_, err := DecimalPlacesFromTick(decimal.RequireFromString(tick))
		require.Error(t, err, "tick %s", tick)
		assert.True(t, errors.Is(err, errors.ErrConfig))
	}
}

func TestRoundPriceHalfUp(t *testing.T) {
	tests := []struct {
		value  string
		places int32
		want   string
	}{
		{"30123.456789", 5, "30123.45679"},
		{"0.12345", 4, "0.1235"},
		{"0.125", 2, "0.13"},
		{"100", 0, "100"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s@%d", tt.value, tt.places), func(t *testing.T) {
			got, err := RoundPrice(decimal.RequireFromString(tt.value), tt.places)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestRoundPriceIdempotent(t *testing.T) {
	values := []string{"30123.456789", "0.000123456", "99999.999999", "1.5"}
	for _, v := range values {
		for places := int32(0); places <= 8; places++ {
			once, err := RoundPrice(decimal.RequireFromString(v), places)
			if err != nil {
				continue // underflow at this precision
			}
			twice, err := RoundPrice(once, places)
			require.NoError(t, err)
			assert.True(t, once.Equal(twice), "value %s places %d", v, places)
		}
	}
}

func TestRoundQuantityUnderflow(t *testing.T) {
	_, err := RoundQuantity(decimal.RequireFromString("0.0001"), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPrecisionUnderflow))

	// zero in, zero out is not an underflow
	got, err := RoundQuantity(decimal.Zero, 2)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestClampScale(t *testing.T) {
	assert.Equal(t, int32(0), ClampScale(-3))
	assert.Equal(t, int32(5), ClampScale(5))
	assert.Equal(t, int32(12), ClampScale(40))
}
