package strategy

import (
	"github.com/fingraph/simengine/pkg/simerr"
)

// ParamSpec describes one tunable strategy parameter.
type ParamSpec struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"` // "int" or "float"
	Default     float64 `json:"default"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Description string  `json:"description"`
}

// Info describes a registered strategy for discovery.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// Factory creates a fresh strategy instance with default parameters.
type Factory func() Strategy

type registration struct {
	info    Info
	factory Factory
}

// Registry is a dispatch table of strategies keyed by name. Instances are
// created per backtest; no state is shared across strategies.
type Registry struct {
	names   []string // registration order, for stable listings
	entries map[string]registration
}

// NewRegistry returns a registry with the built-in strategies registered.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]registration)}

	r.Register(Info{
		Name:        "Moving Average Crossover",
		Description: "Buys when a short simple moving average crosses above a long one, sells on the opposite crossover.",
		Params: []ParamSpec{
			{Name: "shortPeriod", Type: "int", Default: DefaultShortPeriod, Min: 1, Max: 500, Description: "Window of the short moving average in bars; must be less than longPeriod."},
			{Name: "longPeriod", Type: "int", Default: DefaultLongPeriod, Min: 2, Max: 1000, Description: "Window of the long moving average in bars."},
		},
	}, func() Strategy { return NewMovingAverageCrossover() })

	r.Register(Info{
		Name:        "RSI Mean Reversion",
		Description: "Buys when the Relative Strength Index signals an oversold market, sells when it signals an overbought one.",
		Params: []ParamSpec{
			{Name: "period", Type: "int", Default: DefaultRSIPeriod, Min: 1, Max: 500, Description: "RSI lookback window in bars."},
			{Name: "oversoldThreshold", Type: "float", Default: DefaultOversold, Min: 0, Max: 100, Description: "RSI at or below this level triggers a buy."},
			{Name: "overboughtThreshold", Type: "float", Default: DefaultOverbought, Min: 0, Max: 100, Description: "RSI at or above this level triggers a sell."},
		},
	}, func() Strategy { return NewRSIMeanReversion() })

	return r
}

// Register adds a strategy to the registry. Registering the same name twice
// replaces the factory but keeps the original listing position.
func (r *Registry) Register(info Info, factory Factory) {
	if _, exists := r.entries[info.Name]; !exists {
		r.names = append(r.names, info.Name)
	}
	r.entries[info.Name] = registration{info: info, factory: factory}
}

// New creates a fresh instance of the named strategy.
func (r *Registry) New(name string) (Strategy, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, simerr.Newf(simerr.CodeUnknownStrategy, "strategy not found: %s", name)
	}
	return entry.factory(), nil
}

// Has reports whether the named strategy is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// List returns all registered strategies in registration order.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.names))
	for _, name := range r.names {
		infos = append(infos, r.entries[name].info)
	}
	return infos
}

// Parameters returns the parameter schema of the named strategy.
func (r *Registry) Parameters(name string) ([]ParamSpec, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, simerr.Newf(simerr.CodeUnknownStrategy, "strategy not found: %s", name)
	}
	return entry.info.Params, nil
}
