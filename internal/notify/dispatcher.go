package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Kind identifies the email template.
type Kind uint8

const (
	KindVerification Kind = iota + 1
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindVerification:
		return "verification"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Message is one queued email.
type Message struct {
	Kind  Kind
	To    string
	Token string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Config controls dispatcher buffering.
type Config struct {
	BufferSize int
	// DropIfFull drops messages instead of waiting when the buffer is full.
	DropIfFull bool
	// SendTimeout bounds a single delivery. Zero means 30s.
	SendTimeout time.Duration
}

// Dispatcher asynchronously forwards messages to a Sender.
type Dispatcher struct {
	cfg       Config
	sender    Sender
	log       *zap.Logger
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	sent      atomic.Uint64
	closeOnce sync.Once

	// held shared by Enqueue, exclusively by Close while closing done
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(cfg Config, sender Sender, log *zap.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if sender == nil {
		sender = NewLogSender(log)
	}

	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		log:    log.Named("notify"),
		ch:     make(chan Message, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.failed.Add(1)
		d.log.Warn("email delivery failed",
			zap.Stringer("kind", msg.Kind),
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return
	}
	d.sent.Add(1)
}

// Enqueue queues msg for delivery. It never returns an error; a message that
// cannot be queued, including one sent after Close, is counted as dropped.
// A queued message is always delivered before Close returns.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		d.log.Warn("email dispatcher closed, message dropped", zap.Stringer("kind", msg.Kind))
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
		default:
			d.dropped.Add(1)
			d.log.Warn("email queue full, message dropped", zap.Stringer("kind", msg.Kind))
		}
		return
	}

	select {
	case d.ch <- msg:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// SendVerification queues a verification email.
func (d *Dispatcher) SendVerification(ctx context.Context, email, token string) {
	d.Enqueue(ctx, Message{Kind: KindVerification, To: email, Token: token})
}

// SendReset queues a password-reset email.
func (d *Dispatcher) SendReset(ctx context.Context, email, token string) {
	d.Enqueue(ctx, Message{Kind: KindReset, To: email, Token: token})
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

func (d *Dispatcher) Sent() uint64 {
	if d == nil {
		return 0
	}
	return d.sent.Load()
}
