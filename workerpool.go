package sqsworker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ListenerPool runs one keep-alive listener per queue, each in its own
// goroutine. Listeners share the Manager's configuration but no batch
// state, and a failing listener does not stop the others.
type ListenerPool struct {
	manager    *Manager
	queues     []string
	newHandler func(queue string) Handler
	opts       []ReceiveOption

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

func NewListenerPool(manager *Manager, queues []string, newHandler func(queue string) Handler, opts ...ReceiveOption) *ListenerPool {
	return &ListenerPool{
		manager:    manager,
		queues:     queues,
		newHandler: newHandler,
		opts:       opts,
	}
}

func (p *ListenerPool) Start(ctx context.Context) {
	for i, queue := range p.queues {
		p.wg.Add(1)
		go p.listen(ctx, i, queue)
	}
}

// Wait blocks until every listener has returned. Listeners stopped by ctx
// do not contribute an error.
func (p *ListenerPool) Wait() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *ListenerPool) listen(ctx context.Context, listenerID int, queue string) {
	defer p.wg.Done()

	ll := log.With().Str("queue", queue).Int("listener_id", listenerID).Logger()
	ll.Info().Msg("Listener started")

	// recovery to prevent a listener panic from taking the process down
	defer func() {
		if r := recover(); r != nil {
			ll.Error().Interface("panic", r).Msg("Listener recovered from panic")
			p.addErr(fmt.Errorf("listener for %q panicked: %v", queue, r))
		}
	}()

	err := p.manager.Run(ctx, queue, p.newHandler(queue), true, p.opts...)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		ll.Info().Msg("Listener stopping")
	default:
		ll.Error().Err(err).Msg("Listener failed")
		p.addErr(fmt.Errorf("listener for %q: %w", queue, err))
	}
}

func (p *ListenerPool) addErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}
