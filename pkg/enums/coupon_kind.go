package enums

import (
	"fmt"
	"strings"
)

// CouponKind distinguishes percentage coupons from flat amount coupons.
type CouponKind string

const (
	CouponKindPercentage CouponKind = "Percentage"
	CouponKindFlat       CouponKind = "Flat"
)

var validCouponKinds = []CouponKind{
	CouponKindPercentage,
	CouponKindFlat,
}

// String implements fmt.Stringer.
func (k CouponKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known CouponKind.
func (k CouponKind) IsValid() bool {
	for _, candidate := range validCouponKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCouponKind converts raw input into a CouponKind, ignoring case.
func ParseCouponKind(value string) (CouponKind, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validCouponKinds {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon kind %q", value)
}
