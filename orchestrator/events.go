package orchestrator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType 事件类型
type EventType string

const (
	EventRunStarted             EventType = "run_started"
	EventRunCompleted           EventType = "run_completed"
	EventRunFailed              EventType = "run_failed"
	EventPreExecutionValidation EventType = "pre_execution_validation"
	EventAgentStarted           EventType = "agent_started"
	EventAgentCompleted         EventType = "agent_completed"
	EventAgentFailed            EventType = "agent_failed"
)

// subscriptionCounter 用于生成唯一订阅 ID，避免并发碰撞
var subscriptionCounter int64

// Event 编排事件
type Event struct {
	Type      EventType
	RunID     string
	Agent     string
	Payload   map[string]any
	Timestamp time.Time
}

// EventHandler 事件处理器
type EventHandler func(Event)

// EventBus 定义事件总线接口，编排器只依赖 Publish 一侧
type EventBus interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler) string
	Unsubscribe(subscriptionID string)
	Stop()
}

// SimpleEventBus 进程内事件总线实现
type SimpleEventBus struct {
	mu           sync.RWMutex
	handlers     map[EventType]map[string]EventHandler
	eventChannel chan Event
	done         chan struct{}
	stopOnce     sync.Once
	logger       *zap.Logger
}

// NewEventBus 创建新的事件总线
func NewEventBus(bufferSize int, logger *zap.Logger) *SimpleEventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &SimpleEventBus{
		handlers:     make(map[EventType]map[string]EventHandler),
		eventChannel: make(chan Event, bufferSize),
		done:         make(chan struct{}),
		logger:       logger,
	}
	go bus.processEvents()
	return bus
}

// Publish 发布事件
func (b *SimpleEventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.eventChannel <- event:
	case <-b.done:
	default:
		// 如果通道满了，丢弃事件
	}
}

// Subscribe 订阅事件
func (b *SimpleEventBus) Subscribe(eventType EventType, handler EventHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]EventHandler)
	}

	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType][id] = handler
	return id
}

// Unsubscribe 取消订阅
func (b *SimpleEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.handlers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

// processEvents 处理事件
func (b *SimpleEventBus) processEvents() {
	for {
		select {
		case event := <-b.eventChannel:
			b.mu.RLock()
			src := b.handlers[event.Type]
			handlers := make([]EventHandler, 0, len(src))
			for _, h := range src {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, handler := range handlers {
				h := handler
				go func() {
					defer func() {
						if r := recover(); r != nil {
							b.logger.Error("event handler panicked", zap.Any("recover", r))
						}
					}()
					h(event)
				}()
			}
		case <-b.done:
			return
		}
	}
}

// Stop 停止事件总线
func (b *SimpleEventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}

// nopBus 空实现，未注入事件总线时使用
type nopBus struct{}

func (nopBus) Publish(Event)                            {}
func (nopBus) Subscribe(EventType, EventHandler) string { return "" }
func (nopBus) Unsubscribe(string)                       {}
func (nopBus) Stop()                                    {}
