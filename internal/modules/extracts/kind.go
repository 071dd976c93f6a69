// Package extracts reads end-of-day brokerage extract files and normalises their
// rows into typed records.
package extracts

import "fmt"

// Kind identifies one of the five extract domains.
type Kind int

const (
	KindBalances Kind = iota + 1
	KindPositions
	KindOrders
	KindExecutions
	KindCash
)

// BatchOrder is the fixed order in which a batch processes the domains.
var BatchOrder = []Kind{KindBalances, KindPositions, KindOrders, KindExecutions, KindCash}

func (k Kind) String() string {
	switch k {
	case KindBalances:
		return "balances"
	case KindPositions:
		return "positions"
	case KindOrders:
		return "orders"
	case KindExecutions:
		return "executions"
	case KindCash:
		return "cash"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FilePrefix is the leading component of the domain's extract file name.
func (k Kind) FilePrefix() string {
	return k.String()
}

// ParseKind maps a domain name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range BatchOrder {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown extract kind %q", s)
}
