package evo

func resetStrategyRegistriesForTests() {
	for _, r := range []interface{ reset() }{selectorRegistry, crossoverRegistry, mutatorRegistry} {
		r.reset()
	}
	registerBuiltinStrategies()
}

func (r *strategyRegistry[F]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = make(map[string]F)
}
