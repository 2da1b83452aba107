package seisvol

import (
	"fmt"
	"strings"
)

// Config is a map of keyword to arbitrary data to specify configurations via keyword.
// Keywords are case insensitive.
type Config map[string]interface{}

// NewConfig returns an empty configuration.
func NewConfig() Config {
	return make(Config)
}

func (c Config) Set(key string, value interface{}) {
	c[strings.ToLower(key)] = value
}

// Get returns a value for the key, or found = false if not present.
func (c Config) Get(key string) (value interface{}, found bool) {
	value, found = c[strings.ToLower(key)]
	return
}

// GetString returns a string for the key.  An error is returned if the value
// exists but is not a string.
func (c Config) GetString(key string) (s string, found bool, err error) {
	var v interface{}
	if v, found = c.Get(key); !found {
		return
	}
	var ok bool
	if s, ok = v.(string); !ok {
		err = fmt.Errorf("setting %q must be a string (%v)", key, v)
	}
	return
}

// GetBool returns a bool for the key.
func (c Config) GetBool(key string) (b bool, found bool, err error) {
	var v interface{}
	if v, found = c.Get(key); !found {
		return
	}
	var ok bool
	if b, ok = v.(bool); !ok {
		err = fmt.Errorf("setting %q must be a bool (%v)", key, v)
	}
	return
}

// GetInt returns an int for the key.  TOML decodes integers as int64, so
// both widths are accepted.
func (c Config) GetInt(key string) (i int, found bool, err error) {
	var v interface{}
	if v, found = c.Get(key); !found {
		return
	}
	switch n := v.(type) {
	case int:
		i = n
	case int64:
		i = int(n)
	default:
		err = fmt.Errorf("setting %q must be an integer (%v)", key, v)
	}
	return
}

// StoreCloser stores can be closed.
type StoreCloser interface {
	Close()
}

// StoreIdentifiable stores can say whether they are identified by a given store configuration.
type StoreIdentifiable interface {
	// Equal returns true if this store matches the given store configuration.
	Equal(StoreConfig) bool
}

// Store allows persistence of volume and survey records.  The Store
// implementation could be an ordered key-value database or a relational one.
type Store interface {
	fmt.Stringer
	StoreCloser
	StoreIdentifiable
}

// StoreConfig is a store-specific configuration where each store implementation
// defines the types of parameters it accepts.
type StoreConfig struct {
	Config

	// Engine is a simple name describing the engine, e.g., "badger"
	Engine string
}
