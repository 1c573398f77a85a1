package service

import (
	"fmt"
	"strings"

	"github.com/rentflow/internal/models"

	"github.com/shopspring/decimal"
)

// FeePolicy 每笔固定网络手续费
type FeePolicy struct {
	Fixed models.Money
}

// NewFeePolicy 解析配置中的手续费
func NewFeePolicy(raw string) (FeePolicy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FeePolicy{Fixed: models.NewMoneyFromDecimal(decimal.Zero)}, nil
	}
	fixed, err := models.NewMoneyFromString(raw)
	if err != nil {
		return FeePolicy{}, fmt.Errorf("%w: transfer fee %q", ErrInvalidInput, raw)
	}
	if fixed.IsNegative() {
		return FeePolicy{}, fmt.Errorf("%w: transfer fee must not be negative", ErrInvalidInput)
	}
	return FeePolicy{Fixed: fixed}, nil
}

// Compute 返回手续费与净额，net + fee == amount
func (p FeePolicy) Compute(amount models.Money) (fee models.Money, net models.Money) {
	fee = models.NewMoneyFromDecimal(p.Fixed.Decimal)
	net = amount.Sub(fee)
	return fee, net
}
