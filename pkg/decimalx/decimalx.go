package decimalx

import (
	"math"

	"github.com/shopspring/decimal"
)

func MustFromString(s string) decimal.Decimal {
	res, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return res
}

// QuantizeStep 按交易所精度向下取整（截断，不四舍五入）
// 例如 step=0.01, value=3089.719 -> 3089.71
func QuantizeStep(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() || step.IsNegative() {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

func Mean(ds []decimal.Decimal) decimal.Decimal {
	if len(ds) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, d := range ds {
		sum = sum.Add(d)
	}
	return sum.Div(decimal.NewFromInt(int64(len(ds))))
}

// SampleStdDev 样本标准差（分母 n-1）
func SampleStdDev(ds []decimal.Decimal) decimal.Decimal {
	if len(ds) < 2 {
		return decimal.Zero
	}
	mean := Mean(ds)
	sum := decimal.Zero
	for _, d := range ds {
		diff := d.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}
	variance := sum.Div(decimal.NewFromInt(int64(len(ds) - 1)))
	// decimal 没有开方，经过 float64 精度足够
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}
