package intake

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrBadPrice = errors.New("bad price")

	maxTicks = decimal.NewFromInt(math.MaxInt64)
)

// Ticks 对外价格是十进制字符串，引擎里是整数 tick：price = ticks * 10^-Decimals
type Ticks struct {
	Decimals int32
}

// ToTicks 不能整除 tick 的价格直接拒绝，不做四舍五入
func (t Ticks) ToTicks(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPrice, s)
	}
	shifted := d.Shift(t.Decimals)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s is finer than 1e-%d", ErrBadPrice, s, t.Decimals)
	}
	if !shifted.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be positive", ErrBadPrice, s)
	}
	if shifted.GreaterThan(maxTicks) {
		return 0, fmt.Errorf("%w: %s overflows int64 ticks", ErrBadPrice, s)
	}
	return shifted.IntPart(), nil
}

func (t Ticks) Price(ticks int64) string {
	return decimal.New(ticks, -t.Decimals).StringFixed(t.Decimals)
}

// AvgPrice tick 均价转回价格，多保留 4 位
func (t Ticks) AvgPrice(avg decimal.Decimal) string {
	return avg.Shift(-t.Decimals).Round(t.Decimals + 4).String()
}

// AvgPriceString 事件 / 缓存里的 tick 均价字符串
func (t Ticks) AvgPriceString(avg string) string {
	d, err := decimal.NewFromString(avg)
	if err != nil {
		return avg
	}
	return t.AvgPrice(d)
}
