package channels

import (
	"sort"
	"sync"

	"taskmate/pkg/config"
	"taskmate/pkg/gateway"
	"taskmate/pkg/session"
	"taskmate/pkg/tasks"

	jsoniter "github.com/json-iterator/go"
)

// Deps are the shared resources handed to every channel factory.
type Deps struct {
	System *config.SystemConfig
	// Tasks feeds the task panels. Channels never write through it.
	Tasks tasks.Service
	// Sessions lets a front end replay a transcript on reconnect.
	Sessions *session.Manager
	// Shutdown asks the process to exit, e.g. when the terminal UI quits.
	Shutdown func()
}

// ChannelFactory creates a front end from its raw config block.
type ChannelFactory interface {
	Create(rawConfig jsoniter.RawMessage, deps Deps) (gateway.Channel, error)
}

// ChannelFactoryFunc adapts a function to ChannelFactory.
type ChannelFactoryFunc func(rawConfig jsoniter.RawMessage, deps Deps) (gateway.Channel, error)

func (f ChannelFactoryFunc) Create(rawConfig jsoniter.RawMessage, deps Deps) (gateway.Channel, error) {
	return f(rawConfig, deps)
}

var (
	registryMu      sync.RWMutex
	channelRegistry = make(map[string]ChannelFactory)
)

// RegisterChannel is called by channel packages from init.
func RegisterChannel(name string, factory ChannelFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	channelRegistry[name] = factory
}

func GetChannelFactory(name string) (ChannelFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := channelRegistry[name]
	return f, ok
}

// RegisteredChannels lists the known channel types in sorted order.
func RegisteredChannels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(channelRegistry))
	for n := range channelRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
