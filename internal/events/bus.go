// Package events provides an in-process pub/sub bus connecting the bot
// loop to the API stream and the notifier without import cycles.
package events

import (
	"sync"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	EventBotStarted      EventType = "BOT_STARTED"
	EventBotStopped      EventType = "BOT_STOPPED"
	EventBotPaused       EventType = "BOT_PAUSED"
	EventBotResumed      EventType = "BOT_RESUMED"
	EventCycleCompleted  EventType = "CYCLE_COMPLETED"
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventSignalRejected  EventType = "SIGNAL_REJECTED"
	EventPumpDetected    EventType = "PUMP_DETECTED"
	EventTradeOpened     EventType = "TRADE_OPENED"
	EventTradeClosed     EventType = "TRADE_CLOSED"
	EventPositionUpdate  EventType = "POSITION_UPDATE"
	EventEmergencyStop   EventType = "EMERGENCY_STOP"
	EventError           EventType = "ERROR"
)

// Event is one system event.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles events. Subscribers run on their own goroutine per
// event and must not assume ordering across events.
type Subscriber func(Event)

// Bus fan-outs published events to type-specific and catch-all subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[EventType][]Subscriber)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish delivers the event asynchronously to all matching subscribers.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishTradeOpened reports a new position.
func (b *Bus) PublishTradeOpened(symbol, side, source string, entryPrice, quantity float64) {
	b.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"source":      source,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed reports a realized exit.
func (b *Bus) PublishTradeClosed(symbol string, exitPrice, pnl float64, reason string) {
	b.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"exit_price": exitPrice,
			"pnl":        pnl,
			"reason":     reason,
		},
	})
}

// PublishSignal reports a signal that survived the full pipeline.
func (b *Bus) PublishSignal(symbol, side, source string, confidence, quantity float64) {
	b.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"side":       side,
			"source":     source,
			"confidence": confidence,
			"quantity":   quantity,
		},
	})
}

// PublishSignalRejected reports a signal invalidated by the pipeline.
func (b *Bus) PublishSignalRejected(symbol, source, reason string) {
	b.Publish(Event{
		Type: EventSignalRejected,
		Data: map[string]interface{}{
			"symbol": symbol,
			"source": source,
			"reason": reason,
		},
	})
}

// PublishPumpDetected reports a validated pump.
func (b *Bus) PublishPumpDetected(symbol string, priceChangePct, volumeChange, confidence float64) {
	b.Publish(Event{
		Type: EventPumpDetected,
		Data: map[string]interface{}{
			"symbol":           symbol,
			"price_change_pct": priceChangePct,
			"volume_change":    volumeChange,
			"confidence":       confidence,
		},
	})
}

// PublishEmergencyStop reports a drawdown circuit break.
func (b *Bus) PublishEmergencyStop(drawdown float64, reason string) {
	b.Publish(Event{
		Type: EventEmergencyStop,
		Data: map[string]interface{}{
			"drawdown": drawdown,
			"reason":   reason,
		},
	})
}

// PublishError reports a recoverable failure.
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: EventError, Data: data})
}
