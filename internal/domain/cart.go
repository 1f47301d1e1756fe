package domain

// CartItem is one catalog entry with its price in cents.
type CartItem struct {
	Name       string
	PriceCents int
}
