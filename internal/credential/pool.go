// Package credential selects an API key from a configured pool.
package credential

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrEmptyPool is returned when no usable key was configured.
var ErrEmptyPool = eris.New("credential: no keys configured")

// Pool hands out one credential per call.
type Pool interface {
	Pick() string
	Len() int
}

// Strategy names a key selection strategy.
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "round_robin"
)

// New builds a pool over keys using the named strategy. Blank and duplicate
// keys are dropped.
func New(strategy Strategy, keys []string) (Pool, error) {
	clean := normalize(keys)
	if len(clean) == 0 {
		return nil, ErrEmptyPool
	}
	switch strategy {
	case "", StrategyRandom:
		return &randomPool{keys: clean, intn: rand.IntN}, nil
	case StrategyRoundRobin:
		return &roundRobinPool{keys: clean}, nil
	default:
		return nil, eris.Errorf("credential: unknown strategy %q", strategy)
	}
}

func normalize(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

type randomPool struct {
	keys []string
	intn func(int) int
}

func (p *randomPool) Pick() string { return p.keys[p.intn(len(p.keys))] }
func (p *randomPool) Len() int     { return len(p.keys) }

type roundRobinPool struct {
	mu   sync.Mutex
	keys []string
	next int
}

func (p *roundRobinPool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := p.keys[p.next%len(p.keys)]
	p.next++
	return k
}

func (p *roundRobinPool) Len() int { return len(p.keys) }

// Redact returns a log-safe form of key.
func Redact(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}
