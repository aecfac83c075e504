package venues

import (
	"math"

	"github.com/shopspring/decimal"

	"keyprobe/pkg/errors"
)

// maxScale bounds explicit venue-reported scales. Nothing we trade needs
// more than 12 decimal places, and a corrupt scale must not blow up
// decimal rendering.
const maxScale = 12

// DecimalPlacesFromTick derives a decimal-place count from a venue tick or
// step size: abs(floor(log10(tick))). Tick 0.01 gives 2, 1e-05 gives 5,
// and non-power-of-ten ticks like 0.5 still produce a usable count.
func DecimalPlacesFromTick(tick decimal.Decimal) (int32, error) {
	if tick.Sign() <= 0 {
		return 0, errors.Wrapf(errors.ErrConfig, "tick size must be positive, got %s", tick)
	}

	f, _ := tick.Float64()
	places := int32(math.Abs(math.Floor(math.Log10(f))))
	return places, nil
}

// ClampScale bounds an explicit venue-reported integer scale to [0, maxScale].
func ClampScale(scale int32) int32 {
	if scale < 0 {
		return 0
	}
	if scale > maxScale {
		return maxScale
	}
	return scale
}

// RoundPrice rounds a price half-up at the given number of decimal places.
// A nonzero price that rounds to zero is an underflow, not a zero order.
func RoundPrice(v decimal.Decimal, places int32) (decimal.Decimal, error) {
	return roundHalfUp(v, places, "price")
}

// RoundQuantity rounds a quantity half-up at the given number of decimal
// places, with the same underflow rule as RoundPrice.
func RoundQuantity(v decimal.Decimal, places int32) (decimal.Decimal, error) {
	return roundHalfUp(v, places, "quantity")
}

func roundHalfUp(v decimal.Decimal, places int32, what string) (decimal.Decimal, error) {
	rounded := v.Round(ClampScale(places))
	if rounded.IsZero() && !v.IsZero() {
		return decimal.Zero, errors.Wrapf(errors.ErrPrecisionUnderflow,
			"%s %s rounds to zero at %d decimal places", what, v, places)
	}
	return rounded, nil
}
