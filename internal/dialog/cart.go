package dialog

import (
	"fmt"
	"math/rand"
	"strings"

	"drivethru-bot/internal/domain"
)

// Rand is the randomness source for cart generation. *rand.Rand satisfies
// it; the default is the shared top-level source, which is safe across
// conversations.
type Rand interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// DefaultCatalog is the fixed pickup catalog, scanned in order.
var DefaultCatalog = []domain.CartItem{
	{Name: "Ibuprofen 200mg", PriceCents: 899},
	{Name: "Allergy Relief 24hr", PriceCents: 1249},
	{Name: "Cough Syrup", PriceCents: 749},
	{Name: "Vitamin D3 1000IU", PriceCents: 1099},
	{Name: "Adhesive Bandages", PriceCents: 399},
	{Name: "Antacid Tablets", PriceCents: 649},
	{Name: "Hand Sanitizer", PriceCents: 299},
	{Name: "Digital Thermometer", PriceCents: 1499},
	{Name: "Saline Nasal Spray", PriceCents: 579},
	{Name: "Lip Balm", PriceCents: 249},
}

const maxCartCount = 4

// GenerateCart picks a target count in [1,4], then scans the catalog in
// order, including each item on a coin flip, until the target is reached.
// The scan can exhaust the catalog before collecting the target, so the
// cart holds at most the target count, biased toward early catalog
// positions. That policy is deliberate and must not be replaced with a
// uniform sample.
func GenerateCart(catalog []domain.CartItem, rng Rand) []domain.CartItem {
	if rng == nil {
		rng = globalRand{}
	}
	target := rng.Intn(maxCartCount) + 1
	cart := make([]domain.CartItem, 0, target)
	for _, item := range catalog {
		if len(cart) == target {
			break
		}
		if rng.Intn(2) == 1 {
			cart = append(cart, item)
		}
	}
	return cart
}

// CartSummary renders the cart as a single multi-line message.
func CartSummary(cart []domain.CartItem) string {
	noun := "item"
	if len(cart) > 1 {
		noun = "items"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d %s ready for pickup:", len(cart), noun)
	total := 0
	for _, item := range cart {
		fmt.Fprintf(&b, "\n- %s (%s)", item.Name, formatCents(item.PriceCents))
		total += item.PriceCents
	}
	fmt.Fprintf(&b, "\nTotal: %s", formatCents(total))
	return b.String()
}

func formatCents(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
