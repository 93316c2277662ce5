// ABOUTME: WhatsApp transport built on whatsmeow
// ABOUTME: Owns the device session, forwards inbound chats and lifecycle events, sends throttled messages

package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"

	"github.com/2389/coven-script/internal/dispatch"
	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
	"github.com/2389/coven-script/internal/supervisor"
)

// Name identifies this transport in dedupe keys and logs.
const Name = "whatsapp"

const eventBuffer = 256

// Config holds transport settings.
type Config struct {
	SessionPath  string        // SQLite file for the device session
	SendInterval time.Duration // minimum gap between outgoing sends
	SendBurst    int
}

// Transport is a WhatsApp multi-device client.
type Transport struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	limiter   *rate.Limiter
	logger    *slog.Logger

	events    chan dispatch.Event
	lifecycle chan supervisor.Event
	done      chan struct{}
	closeOnce sync.Once
}

// New opens the device session and prepares the client. It does not connect.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "whatsapp")

	if dir := filepath.Dir(cfg.SessionPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating session directory: %w", err)
		}
	}

	dsn := "file:" + cfg.SessionPath + "?_foreign_keys=on"
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newWALogger(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("loading device: %w", err)
	}

	client := whatsmeow.NewClient(device, newWALogger(logger, "client"))
	client.EnableAutoReconnect = false

	burst := cfg.SendBurst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.SendInterval > 0 {
		limit = rate.Every(cfg.SendInterval)
	}

	t := &Transport{
		client:    client,
		container: container,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
		events:    make(chan dispatch.Event, eventBuffer),
		lifecycle: make(chan supervisor.Event, eventBuffer),
		done:      make(chan struct{}),
	}
	client.AddEventHandler(t.handleEvent)

	return t, nil
}

// Name returns the transport name.
func (t *Transport) Name() string { return Name }

// Events returns inbound direct-chat messages.
func (t *Transport) Events() <-chan dispatch.Event { return t.events }

// Lifecycle returns connection lifecycle events.
func (t *Transport) Lifecycle() <-chan supervisor.Event { return t.lifecycle }

// Connect opens the websocket. An unpaired device starts QR pairing and the
// codes arrive on Lifecycle as QRChallenge events.
func (t *Transport) Connect(ctx context.Context) error {
	if t.client.IsConnected() {
		t.client.Disconnect()
	}

	if t.client.Store.ID == nil {
		qrChan, err := t.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("requesting pairing channel: %w", err)
		}
		go t.forwardQR(qrChan)
	}

	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

func (t *Transport) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			t.emitLifecycle(supervisor.QRChallenge(item.Code))
		case whatsmeow.QRChannelSuccess.Event:
			t.logger.Info("device paired")
		case whatsmeow.QRChannelTimeout.Event:
			t.emitLifecycle(supervisor.AuthFailure("pairing timed out"))
		case whatsmeow.QRChannelEventError:
			t.emitLifecycle(supervisor.AuthFailure(fmt.Sprintf("pairing failed: %v", item.Error)))
		default:
			t.logger.Debug("pairing event", "event", item.Event)
		}
	}
}

// Close disconnects and releases the session store. Safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.client.Disconnect()
		err = t.container.Close()
	})
	return err
}

func (t *Transport) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		ev, ok := inboundEvent(v)
		if !ok {
			return
		}
		t.emitInbound(ev)

	case *events.Connected:
		t.emitLifecycle(supervisor.Ready())

	case *events.Disconnected:
		t.emitLifecycle(supervisor.Disconnected("websocket closed"))

	case *events.StreamReplaced:
		t.emitLifecycle(supervisor.Disconnected("stream replaced by another client"))

	case *events.LoggedOut:
		t.emitLifecycle(supervisor.LoggedOut(v.Reason.String()))

	case *events.ConnectFailure:
		t.emitLifecycle(supervisor.AuthFailure(fmt.Sprintf("connect failure: %s", v.Reason.String())))

	case *events.TemporaryBan:
		t.emitLifecycle(supervisor.AuthFailure(v.String()))
	}
}

// emitInbound never blocks whatsmeow's event goroutine; a full buffer drops
// the message.
func (t *Transport) emitInbound(ev dispatch.Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	default:
		t.logger.Warn("inbound buffer full, dropping message", "chat", ev.ConversationID, "message_id", ev.MessageID)
	}
}

func (t *Transport) emitLifecycle(ev supervisor.Event) {
	select {
	case t.lifecycle <- ev:
	case <-t.done:
	}
}

// SendText implements dispatch.Messenger.
func (t *Transport) SendText(ctx context.Context, conversationID, text string) error {
	jid, err := t.prepareSend(ctx, conversationID)
	if err != nil {
		return err
	}

	_, err = t.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return fmt.Errorf("sending text: %w", err)
	}
	return nil
}

// SendMedia implements dispatch.Messenger.
func (t *Transport) SendMedia(ctx context.Context, conversationID string, m *media.Media, opts media.SendOptions) error {
	jid, err := t.prepareSend(ctx, conversationID)
	if err != nil {
		return err
	}

	up, err := t.client.Upload(ctx, m.Data, uploadType(m.Kind))
	if err != nil {
		return fmt.Errorf("uploading %s: %w", m.Ref, err)
	}

	resp, err := t.client.SendMessage(ctx, jid, buildMediaMessage(up, m, opts))
	if err != nil {
		return fmt.Errorf("sending %s: %w", m.Ref, err)
	}

	t.logger.Debug("media delivered", "chat", conversationID, "media", m.Ref, "message_id", resp.ID)
	return nil
}

// SetIndicator implements dispatch.Messenger.
func (t *Transport) SetIndicator(ctx context.Context, conversationID string, kind script.IndicatorKind) error {
	jid, err := parseChat(conversationID)
	if err != nil {
		return err
	}
	if !t.client.IsConnected() {
		return errNotConnected
	}

	if err := t.client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, presenceMedia(kind)); err != nil {
		return fmt.Errorf("setting %s presence: %w", kind, err)
	}
	return nil
}

var errNotConnected = errors.New("whatsapp client is not connected")

func (t *Transport) prepareSend(ctx context.Context, conversationID string) (types.JID, error) {
	jid, err := parseChat(conversationID)
	if err != nil {
		return types.JID{}, err
	}
	if !t.client.IsConnected() {
		return types.JID{}, errNotConnected
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return types.JID{}, fmt.Errorf("waiting for send slot: %w", err)
	}
	return jid, nil
}
