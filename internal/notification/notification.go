package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/models"
)

// Event is one push notification addressed to a user. Data travels as-is to
// the service worker.
type Event struct {
	UserID uuid.UUID
	Title  string
	Body   string
	Data   map[string]any
}

// Sender abstracts the web push transport so tests can intercept sends.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Dispatcher fans push events out to every subscription of the target user
// on a background worker. A full queue drops the event; notifications are
// best-effort and must never block a request.
type Dispatcher struct {
	db      *gorm.DB
	sender  Sender
	options *webpush.Options
	queue   chan Event
}

func NewDispatcher(db *gorm.DB, sender Sender, vapidPublicKey, vapidPrivateKey, subscriber string) *Dispatcher {
	d := &Dispatcher{
		db:     db,
		sender: sender,
		options: &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  vapidPublicKey,
			VAPIDPrivateKey: vapidPrivateKey,
			TTL:             3600,
		},
		queue: make(chan Event, 256),
	}

	go d.worker()
	return d
}

func (d *Dispatcher) Dispatch(ev Event) {
	select {
	case d.queue <- ev:
	default:
		log.Println("notification queue full, dropping event")
	}
}

func (d *Dispatcher) worker() {
	for ev := range d.queue {
		d.deliver(context.Background(), ev)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	// sender ausente: ambiente sem VAPID configurado (testes, dev local)
	if d.sender == nil {
		log.Printf("notification (log only) user=%s title=%q", ev.UserID, ev.Title)
		return
	}

	var subs []models.PushSubscription
	if err := d.db.WithContext(ctx).
		Where("user_id = ?", ev.UserID).
		Find(&subs).Error; err != nil {
		log.Printf("fetching subscriptions for %s: %v", ev.UserID, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"title": ev.Title,
		"body":  ev.Body,
		"data":  ev.Data,
	})
	if err != nil {
		log.Printf("encoding notification payload: %v", err)
		return
	}

	for _, sub := range subs {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := d.sender.Send(payload, wpSub, d.options)
		if err != nil {
			log.Printf("sending push to %s: %v", sub.Endpoint, err)
			continue
		}
		if resp != nil {
			if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
				// assinatura morta, limpamos
				d.db.WithContext(ctx).Delete(&models.PushSubscription{}, "endpoint = ?", sub.Endpoint)
			}
			resp.Body.Close()
		}
	}
}
