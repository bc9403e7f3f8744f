// Package pricing defines the fixed credit price table and per-operation
// credit costs.
package pricing

import "github.com/pixforge/pixforge-api/internal/models"

// RegistrationGrant is the credit balance a new account starts with.
const RegistrationGrant = 100

// Per-operation credit costs.
const (
	CostTextToImage  = 10
	CostImageToImage = 15
	CostImageToVideo = 30
)

// CreditPackage is one purchasable credit bundle. Price is in CNY; Bonus
// credits are granted on top of the base amount on settlement.
type CreditPackage struct {
	Credits int     `json:"credits"`
	Price   float64 `json:"price"`
	Bonus   int     `json:"bonus"`
}

// TotalCredits is the amount granted on settlement.
func (p CreditPackage) TotalCredits() int {
	return p.Credits + p.Bonus
}

// Packages is the fixed price table. Orders are validated against it; a
// request for any other bundle is rejected.
var Packages = []CreditPackage{
	{Credits: 100, Price: 10, Bonus: 0},
	{Credits: 500, Price: 45, Bonus: 50},
	{Credits: 1000, Price: 80, Bonus: 200},
	{Credits: 2000, Price: 150, Bonus: 500},
	{Credits: 5000, Price: 300, Bonus: 1500},
}

// FindPackage looks up a package by its base credit amount.
func FindPackage(credits int) (CreditPackage, bool) {
	for _, p := range Packages {
		if p.Credits == credits {
			return p, true
		}
	}
	return CreditPackage{}, false
}

// CostFor returns the credit cost of a generation type. Unknown types
// report ok=false.
func CostFor(genType models.GenerationType) (int, bool) {
	switch genType {
	case models.GenTextToImage:
		return CostTextToImage, true
	case models.GenImageToImage:
		return CostImageToImage, true
	case models.GenImageToVideo:
		return CostImageToVideo, true
	default:
		return 0, false
	}
}
