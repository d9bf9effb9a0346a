package domain

import "github.com/shopspring/decimal"

// Product is the catalog snapshot copied into a line item at order creation.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Discount decimal.Decimal
}
