package enums

import "fmt"

// ProductSort orders catalog listings.
type ProductSort string

const (
	ProductSortNewest    ProductSort = "newest"
	ProductSortLowToHigh ProductSort = "lowToHigh"
	ProductSortHighToLow ProductSort = "highToLow"
)

var validProductSorts = []ProductSort{
	ProductSortNewest,
	ProductSortLowToHigh,
	ProductSortHighToLow,
}

// IsValid reports whether the value is a known ProductSort.
func (s ProductSort) IsValid() bool {
	for _, candidate := range validProductSorts {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductSort converts raw input into a ProductSort, defaulting to newest.
func ParseProductSort(value string) (ProductSort, error) {
	if value == "" {
		return ProductSortNewest, nil
	}
	for _, candidate := range validProductSorts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sort %q", value)
}
