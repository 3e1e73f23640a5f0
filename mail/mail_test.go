package mail

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePublisher struct {
	mu       sync.Mutex
	exchange string
	key      string
	msgs     []amqp091.Publishing
	err      error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.exchange, p.key = exchange, key
	p.msgs = append(p.msgs, msg)
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func TestAMQPMailerPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	m := NewAMQPMailer(pub, "notifications", "mail.outbound")

	if err := m.Send(context.Background(), TwoFactorCode("a@example.com", "123456")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pub.exchange != "notifications" || pub.key != "mail.outbound" || len(pub.msgs) != 1 {
		t.Fatalf("unexpected publish %+v", pub)
	}
	got := pub.msgs[0]
	if got.DeliveryMode != amqp091.Persistent || got.Type != TemplateTwoFactorCode {
		t.Fatalf("unexpected publishing %+v", got)
	}
	var decoded Message
	if err := json.Unmarshal(got.Body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.To != "a@example.com" || decoded.Data["code"] != "123456" {
		t.Fatalf("unexpected body %+v", decoded)
	}
}

func TestAMQPMailerErrors(t *testing.T) {
	m := NewAMQPMailer(&fakePublisher{err: errors.New("channel closed")}, "", "q")
	if err := m.Send(context.Background(), TwoFactorCode("a@example.com", "1")); err == nil {
		t.Fatal("expected publish error")
	}
	if err := m.Send(context.Background(), TwoFactorCode(" ", "1")); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestDispatcherDeliversInBackground(t *testing.T) {
	rec := &recordingMailer{}
	d := NewDispatcher(rec, time.Second, nil)

	d.Go(TwoFactorCode("a@example.com", "654321"))
	d.Wait()

	if len(rec.sent) != 1 || rec.sent[0].Data["code"] != "654321" {
		t.Fatalf("unexpected sent messages %+v", rec.sent)
	}
}

func TestDispatcherTimesOutAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	slow := MailerFunc(func(ctx context.Context, _ Message) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := NewDispatcher(slow, 20*time.Millisecond, zap.New(core))

	start := time.Now()
	d.Go(TwoFactorCode("a@example.com", "1"))
	if time.Since(start) > 10*time.Millisecond {
		t.Fatal("Go blocked the caller")
	}
	d.Wait()

	if logs.FilterMessage("mail delivery failed").Len() != 1 {
		t.Fatalf("expected a delivery failure log, got %v", logs.All())
	}
}

func TestDispatcherNilMailer(t *testing.T) {
	d := NewDispatcher(nil, 0, nil)
	d.Go(TwoFactorCode("a@example.com", "1"))
	d.Wait()

	var nilDispatcher *Dispatcher
	nilDispatcher.Go(TwoFactorCode("a@example.com", "1"))
	nilDispatcher.Wait()
}

func TestLogMailerOmitsData(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewLogMailer(zap.New(core))
	if err := m.Send(context.Background(), TwoFactorCode("a@example.com", "999999")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			if v == "999999" {
				t.Fatal("code leaked into logs")
			}
		}
	}
}
