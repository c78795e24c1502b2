package llm

import (
	"sort"
	"sync"

	"taskmate/pkg/config"
)

// ProviderFactory builds the atomic clients of one provider group.
type ProviderFactory interface {
	Create(group config.ProviderGroupConfig, system *config.SystemConfig) ([]LLMClient, error)
}

// ProviderFactoryFunc adapts a function to ProviderFactory.
type ProviderFactoryFunc func(group config.ProviderGroupConfig, system *config.SystemConfig) ([]LLMClient, error)

func (f ProviderFactoryFunc) Create(group config.ProviderGroupConfig, system *config.SystemConfig) ([]LLMClient, error) {
	return f(group, system)
}

var (
	registryMu       sync.RWMutex
	providerRegistry = make(map[string]ProviderFactory)
)

// RegisterProvider registers a factory under name. Providers call it from init.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providerRegistry[name] = factory
}

// GetProviderFactory looks up a registered factory.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := providerRegistry[name]
	return f, ok
}

// RegisteredProviders lists the registered provider names in sorted order.
func RegisteredProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(providerRegistry))
	for n := range providerRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
