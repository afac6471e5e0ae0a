package decimalx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestQuantizeStep(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		step  string
		want  string
	}{
		{
			name:  "截断价格到tick",
			value: "3089.719",
			step:  "0.01",
			want:  "3089.71",
		},
		{
			name:  "已对齐不变",
			value: "2970",
			step:  "0.01",
			want:  "2970",
		},
		{
			name:  "数量截断到step",
			value: "0.12345",
			step:  "0.001",
			want:  "0.123",
		},
		{
			name:  "只截断不进位",
			value: "1.999",
			step:  "0.01",
			want:  "1.99",
		},
		{
			name:  "step为零返回原值",
			value: "1.2345",
			step:  "0",
			want:  "1.2345",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := QuantizeStep(MustFromString(tc.value), MustFromString(tc.step))
			assert.True(t, got.Equal(MustFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestMean(t *testing.T) {
	ds := []decimal.Decimal{
		decimal.NewFromInt(1),
		decimal.NewFromInt(2),
		decimal.NewFromInt(3),
		decimal.NewFromInt(4),
	}
	assert.True(t, Mean(ds).Equal(decimal.NewFromFloat(2.5)))
	assert.True(t, Mean(nil).IsZero())
}

func TestSampleStdDev(t *testing.T) {
	// statistics.stdev([2, 4, 4, 4, 5, 5, 7, 9]) ≈ 2.138
	ds := []decimal.Decimal{
		decimal.NewFromInt(2),
		decimal.NewFromInt(4),
		decimal.NewFromInt(4),
		decimal.NewFromInt(4),
		decimal.NewFromInt(5),
		decimal.NewFromInt(5),
		decimal.NewFromInt(7),
		decimal.NewFromInt(9),
	}
	got := SampleStdDev(ds)
	assert.InDelta(t, 2.13809, got.InexactFloat64(), 0.0001)

	assert.True(t, SampleStdDev(ds[:1]).IsZero())

	same := []decimal.Decimal{decimal.NewFromInt(5), decimal.NewFromInt(5)}
	assert.True(t, SampleStdDev(same).IsZero())
}
