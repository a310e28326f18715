package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/obs"
	"github.com/noah-isme/novahub/internal/order"
)

// Locker serialises work on a named resource.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// ReceiptWorker renders order confirmations and hands them to the mail sender.
type ReceiptWorker struct {
	Mail    common.EmailSender
	Locker  Locker
	LockTTL time.Duration
	Logger  *zerolog.Logger
}

// NewMux routes receipt tasks to w.
func NewMux(w *ReceiptWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOrderReceipt, w.ProcessTask)
	return mux
}

// ProcessTask implements asynq.Handler. Malformed payloads and orders without
// a recipient are not retried.
func (w *ReceiptWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if w == nil || w.Mail == nil {
		return errors.New("receipt worker: mail sender not configured")
	}
	var o order.Order
	if err := json.Unmarshal(t.Payload(), &o); err != nil {
		obs.ObserveReceiptTask("send", "invalid")
		return fmt.Errorf("decode order: %v: %w", err, asynq.SkipRetry)
	}
	receipt := order.RenderReceipt(o)
	if strings.TrimSpace(receipt.To) == "" {
		obs.ObserveReceiptTask("send", "skipped")
		w.log().Warn().Str("order_id", o.ID).Msg("receipt skipped: customer has no email")
		return nil
	}
	send := func(context.Context) error { return w.Mail.Send(receipt.To, receipt.Subject, receipt.Body) }
	var err error
	if w.Locker != nil {
		ttl := w.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		err = w.Locker.WithLock(ctx, "receipt:"+o.ID, ttl, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		obs.ObserveReceiptTask("send", "error")
		return fmt.Errorf("send receipt %s: %w", o.ID, err)
	}
	obs.ObserveReceiptTask("send", "ok")
	w.log().Info().Str("order_id", o.ID).Str("to", receipt.To).Msg("receipt sent")
	return nil
}

func (w *ReceiptWorker) log() *zerolog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// LogSender writes outgoing mail to the logger. Used when no mail relay is configured.
type LogSender struct {
	Logger zerolog.Logger
}

// Send implements common.EmailSender.
func (s LogSender) Send(to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Int("body_bytes", len(body)).Msg("email")
	return nil
}
