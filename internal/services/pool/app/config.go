package app

import (
	"strings"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// MemoryDBPath selects the in-memory ledger.
const MemoryDBPath = ":memory:"

// HTTPDisabled turns the read API off. An empty env value falls back to the
// default address, so disabling needs an explicit word.
const HTTPDisabled = "off"

const (
	defaultPort          = 8090
	defaultDBPath        = "data/pool.db"
	defaultRelayInterval = time.Second
)

// Config controls the pool service runtime.
type Config struct {
	Port int `env:"CELLARPOOL_POOL_PORT" envDefault:"8090"`
	// Addr overrides Port when set.
	Addr string `env:"CELLARPOOL_POOL_ADDR"`
	// HTTPAddr serves the read API; HTTPDisabled or empty turns it off.
	HTTPAddr string `env:"CELLARPOOL_POOL_HTTP_ADDR" envDefault:"localhost:8091"`
	DBPath   string `env:"CELLARPOOL_POOL_DB_PATH" envDefault:"data/pool.db"`

	// ActorTokenSecret switches callers to signed actor tokens when set.
	ActorTokenSecret string `env:"CELLARPOOL_POOL_ACTOR_TOKEN_SECRET"`

	Governance []string `env:"CELLARPOOL_POOL_GOVERNANCE_DISTRIBUTORS" envSeparator:","`

	// RedisAddr enables the event relay when set.
	RedisAddr     string        `env:"CELLARPOOL_POOL_REDIS_ADDR"`
	RedisChannel  string        `env:"CELLARPOOL_POOL_REDIS_CHANNEL"`
	RelayInterval time.Duration `env:"CELLARPOOL_POOL_RELAY_INTERVAL" envDefault:"1s"`
}

func (c Config) normalized() Config {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = defaultDBPath
	}
	if c.RelayInterval <= 0 {
		c.RelayInterval = defaultRelayInterval
	}
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	if strings.EqualFold(c.HTTPAddr, HTTPDisabled) {
		c.HTTPAddr = ""
	}
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	return c
}

// governance returns the normalized distributor addresses.
func (c Config) governance() []ledger.Address {
	out := make([]ledger.Address, 0, len(c.Governance))
	for _, raw := range c.Governance {
		if addr := ledger.Address(raw).Normalize(); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
