package services

import "errors"

// ErrInvalidPrice is returned when a yield is requested for a non-positive price.
var ErrInvalidPrice = errors.New("price must be positive")

// monthlyRent is the rough UK monthly rent by bedroom count.
var monthlyRent = map[int]int{
	0: 500,
	1: 700,
	2: 900,
	3: 1100,
	4: 1400,
	5: 1700,
}

const defaultMonthlyRent = 1000

// EstimateMonthlyRent returns the table rent for bedrooms, or the default for
// counts outside the table.
func EstimateMonthlyRent(bedrooms int) int {
	if rent, ok := monthlyRent[bedrooms]; ok {
		return rent
	}
	return defaultMonthlyRent
}

// EstimateYield returns the gross rental yield in percent:
// annual table rent / price × 100.
func EstimateYield(price, bedrooms int) (float64, error) {
	if price <= 0 {
		return 0, ErrInvalidPrice
	}
	annual := EstimateMonthlyRent(bedrooms) * 12
	return float64(annual*100) / float64(price), nil
}
