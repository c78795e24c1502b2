package channels

import (
	"errors"
	"testing"

	"taskmate/pkg/api"
	"taskmate/pkg/apperr"
	"taskmate/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

type stubChannel struct{ id string }

func (c *stubChannel) ID() string                            { return c.id }
func (c *stubChannel) Start(api.ChannelContext) error        { return nil }
func (c *stubChannel) Stop() error                           { return nil }
func (c *stubChannel) Send(api.SessionContext, string) error { return nil }

func init() {
	RegisterChannel("stub-a", ChannelFactoryFunc(func(raw jsoniter.RawMessage, deps Deps) (gateway.Channel, error) {
		return &stubChannel{id: "stub-a"}, nil
	}))
	RegisterChannel("stub-b", ChannelFactoryFunc(func(raw jsoniter.RawMessage, deps Deps) (gateway.Channel, error) {
		return &stubChannel{id: "stub-b"}, nil
	}))
	RegisterChannel("stub-off", ChannelFactoryFunc(func(raw jsoniter.RawMessage, deps Deps) (gateway.Channel, error) {
		return nil, nil
	}))
	RegisterChannel("stub-bad", ChannelFactoryFunc(func(raw jsoniter.RawMessage, deps Deps) (gateway.Channel, error) {
		return nil, errors.New("missing token")
	}))
}

func TestLoadFromConfig(t *testing.T) {
	got, err := LoadFromConfig(map[string]jsoniter.RawMessage{
		"stub-b":   jsoniter.RawMessage(`{}`),
		"stub-a":   jsoniter.RawMessage(`{}`),
		"stub-off": jsoniter.RawMessage(`{}`),
		"mystery":  jsoniter.RawMessage(`{}`),
	}, Deps{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID() != "stub-a" || got[1].ID() != "stub-b" {
		t.Errorf("channels = %v", got)
	}
}

func TestLoadFromConfigErrors(t *testing.T) {
	if _, err := LoadFromConfig(map[string]jsoniter.RawMessage{"stub-bad": nil}, Deps{}); err == nil {
		t.Error("factory error should abort loading")
	}

	_, err := LoadFromConfig(map[string]jsoniter.RawMessage{"stub-off": nil}, Deps{})
	if !apperr.IsConfiguration(err) {
		t.Errorf("err = %v, want ConfigurationError", err)
	}
}
