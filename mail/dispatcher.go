package mail

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Dispatcher sends messages in the background.
type Dispatcher struct {
	mailer  Mailer
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher wraps mailer. A nil mailer makes every send a no-op.
func NewDispatcher(mailer Mailer, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{mailer: mailer, timeout: timeout, logger: logger.Named("mail")}
}

// Go sends msg without waiting. The send is detached from the caller's
// context so a finished request does not cancel it.
func (d *Dispatcher) Go(msg Message) {
	if d == nil || d.mailer == nil {
		return
	}
	if err := msg.validate(); err != nil {
		d.logger.Warn("mail skipped", zap.String("template", msg.Template), zap.Error(err))
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("mailer panicked", zap.String("template", msg.Template), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.mailer.Send(ctx, msg); err != nil {
			d.logger.Warn("mail delivery failed",
				zap.String("template", msg.Template),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		d.logger.Debug("mail delivered", zap.String("template", msg.Template))
	}()
}

// Wait blocks until in-flight sends finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
