package server

import (
	"context"
	"net"

	"golang.org/x/time/rate"
)

var _ net.Listener = (*throttledListener)(nil)

// throttledListener accepts at most a fixed number of connections per second.
// Close unblocks a pending Accept.
type throttledListener struct {
	net.Listener
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter
}

func newThrottledListener(l net.Listener, perSecond float64, burst int) net.Listener {
	if burst < 1 {
		burst = int(perSecond) + 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &throttledListener{
		Listener: l,
		ctx:      ctx,
		cancel:   cancel,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (l *throttledListener) Accept() (net.Conn, error) {
	if err := l.limiter.Wait(l.ctx); err != nil {
		return nil, net.ErrClosed
	}
	return l.Listener.Accept()
}

func (l *throttledListener) Close() error {
	l.cancel()
	return l.Listener.Close()
}
