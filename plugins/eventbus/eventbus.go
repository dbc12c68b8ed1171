// Package eventbus provides a simple publish/subscribe event bus. Plugins and
// components can optionally use this to communicate with each other, for
// example to react to account creation or login events.
package eventbus

import (
	"context"

	"github.com/dpup/taskhub"
)

// Constant name for identifying the eventbus plugin.
const PluginName = "eventbus"

// Handler is the function type for event subscribers. Handlers should assume
// that they may be called multiple times concurrently.
type Handler func(ctx context.Context, msg *Message) error

// Plugin registers an eventbus with a taskhub server for other plugins to use.
func Plugin(eb EventBus) *EventBusPlugin {
	return &EventBusPlugin{
		EventBus: eb,
	}
}

// EventBusPlugin provides access to an event bus for plugins and components
// to communicate with each other.
type EventBusPlugin struct {
	EventBus
}

// From taskhub.Plugin
func (p *EventBusPlugin) Name() string {
	return PluginName
}

var _ taskhub.Plugin = &EventBusPlugin{}

// EventBus provides publish/subscribe and work queue semantics.
type EventBus interface {
	// Subscribe to a topic. The handler will be called for every message
	// published to the topic.
	Subscribe(topic string, handler Handler)

	// SubscribeQueue registers a handler for queue messages. Each message is
	// delivered to exactly one of the queue subscribers for a topic.
	SubscribeQueue(topic string, handler Handler)

	// Publish a message. The message will be sent to all subscribers.
	Publish(topic string, data any)

	// Enqueue a message. The message will be sent to one queue subscriber.
	Enqueue(topic string, data any)

	// Shutdown stops accepting new work and waits for handlers to finish.
	Shutdown(ctx context.Context) error

	// Wait blocks until all pending messages are processed, or the context is
	// canceled. Ensure publishers are stopped first, the bus won't reject new
	// messages.
	Wait(ctx context.Context) error
}
