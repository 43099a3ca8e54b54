// Package eventbus is an in-process publish/subscribe bus. Handlers are
// plain functions; an event is delivered to every subscriber whose
// signature matches the published arguments.
package eventbus

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

type EventBus interface {
	Publish(args ...any)
	Subscribe(handler any)
	Unsubscribe(handler any)
	Clear()
	SubscribersCount() int
}

type publisher struct {
	log *logrus.Logger

	mu       sync.RWMutex
	handlers []any
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisher{log: log}
}

// MatchSignature reports whether handler is a function whose parameters
// could be called with args.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t.Kind() != reflect.Func {
		return false
	}
	if t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		param := t.In(i)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if param.Kind() == reflect.Interface {
			if !argType.Implements(param) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(param) {
			return false
		}
	}
	return true
}

func (p *publisher) Publish(args ...any) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	p.mu.RLock()
	handlers := make([]any, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	handled := false
	for _, handler := range handlers {
		if !MatchSignature(handler, args) {
			continue
		}
		v := reflect.ValueOf(handler)
		func() {
			defer func() {
				if r := recover(); r != nil {
					if p.log != nil {
						p.log.Errorf("eventbus: handler %s panicked with args %v: %v", v.Type().String(), args, r)
					}
				}
			}()
			v.Call(in)
			handled = true
		}()
	}

	if !handled && p.log != nil {
		p.log.Warnf("eventbus.Publish: no matching subscribers for event with args: %v", in)
	}
}

func (p *publisher) Subscribe(handler any) {
	if reflect.TypeOf(handler).Kind() != reflect.Func {
		panic("handler must be a function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

func (p *publisher) Unsubscribe(handler any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	target := reflect.ValueOf(handler).Pointer()
	for i, h := range p.handlers {
		if reflect.ValueOf(h).Pointer() == target {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

func (p *publisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = nil
}

func (p *publisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}
