package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/rebalance/portfolio"
)

// Policy chooses target weights for the portfolio environment.
type Policy = portfolio.Policy

var (
	mu       sync.RWMutex
	registry = make(map[string]Policy)
)

// Register makes a policy available by name to PolicyByName.
func Register(name string, p Policy) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = p
}

// Names lists the built-in and registered policy names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := []string{"buy-and-hold", "equal-weight", "momentum"}
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PolicyByName returns a built-in policy, or one added with Register.
// lookback only applies to momentum.
func PolicyByName(name string, lookback int) (Policy, error) {
	switch normalize(name) {
	case "equal-weight", "equal", "ew":
		return EqualWeight{}, nil

	case "buy-and-hold", "hold":
		return BuyAndHold{}, nil

	case "momentum", "mom":
		return Momentum{Lookback: lookback}, nil
	}

	mu.RLock()
	p, ok := registry[normalize(name)]
	mu.RUnlock()
	if ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown policy %q (supported: %s)", name, strings.Join(Names(), ", "))
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}
