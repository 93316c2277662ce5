// ABOUTME: Matrix transport built on mautrix
// ABOUTME: Syncs room messages into dispatch events and sends markdown text, media and typing notices

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-script/internal/dispatch"
	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
	"github.com/2389/coven-script/internal/supervisor"
)

// Name identifies this transport in dedupe keys and logs.
const Name = "matrix"

const (
	eventBuffer = 256

	// typingTimeout is how long the homeserver shows the typing notice.
	typingTimeout = 30 * time.Second
)

// Config holds transport settings.
type Config struct {
	Homeserver   string
	UserID       string
	AccessToken  string
	AllowedRooms []string

	Encryption  bool
	RecoveryKey string
	DataDir     string
}

// Transport is a Matrix bot account.
type Transport struct {
	cfg     Config
	client  *mautrix.Client
	allowed map[string]bool
	logger  *slog.Logger

	events    chan dispatch.Event
	lifecycle chan supervisor.Event
	done      chan struct{}
	closeOnce sync.Once

	// memberCount reports joined users in a room; swapped in tests.
	memberCount func(ctx context.Context, roomID id.RoomID) (int, error)

	mu          sync.Mutex
	crypto      *cryptoManager
	stopSync    context.CancelFunc
	syncDone    chan struct{}
	startedAt   time.Time
	directRooms map[id.RoomID]bool
}

// New creates the client and registers the message handler. It does not
// contact the homeserver.
func New(cfg Config, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	syncer, ok := client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return nil, fmt.Errorf("unexpected syncer type: %T", client.Syncer)
	}

	t := &Transport{
		cfg:       cfg,
		client:    client,
		allowed:   make(map[string]bool, len(cfg.AllowedRooms)),
		logger:    logger.With("component", "matrix"),
		events:    make(chan dispatch.Event, eventBuffer),
		lifecycle: make(chan supervisor.Event, eventBuffer),
		done:      make(chan struct{}),

		directRooms: make(map[id.RoomID]bool),
	}
	t.memberCount = t.joinedMemberCount
	for _, room := range cfg.AllowedRooms {
		t.allowed[room] = true
	}

	syncer.OnEventType(event.EventMessage, t.handleMessage)
	syncer.OnEventType(event.StateMember, t.handleMembership)
	return t, nil
}

// Name returns the transport name.
func (t *Transport) Name() string { return Name }

// Events returns inbound room messages.
func (t *Transport) Events() <-chan dispatch.Event { return t.events }

// Lifecycle returns connection lifecycle events.
func (t *Transport) Lifecycle() <-chan supervisor.Event { return t.lifecycle }

// Connect verifies the access token and (re)starts the sync loop.
func (t *Transport) Connect(ctx context.Context) error {
	t.stopSyncLoop()

	whoami, err := t.client.Whoami(ctx)
	if err != nil {
		if errors.Is(err, mautrix.MUnknownToken) || errors.Is(err, mautrix.MMissingToken) {
			return fmt.Errorf("access token rejected: %w", err)
		}
		return fmt.Errorf("contacting homeserver: %w", err)
	}
	if whoami.UserID != t.client.UserID {
		return fmt.Errorf("access token belongs to %s, not %s", whoami.UserID, t.client.UserID)
	}
	t.client.DeviceID = whoami.DeviceID

	if t.cfg.Encryption {
		if err := t.ensureCrypto(ctx); err != nil {
			return err
		}
	}

	syncCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	t.mu.Lock()
	t.stopSync = cancel
	t.syncDone = done
	if t.startedAt.IsZero() {
		t.startedAt = time.Now()
	}
	t.mu.Unlock()

	go t.runSync(syncCtx, done)

	t.emitLifecycle(supervisor.Ready())
	return nil
}

func (t *Transport) ensureCrypto(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.crypto != nil {
		return nil
	}
	cm, err := setupCrypto(ctx, t.client, t.cfg.RecoveryKey, t.cfg.DataDir, t.logger)
	if err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	t.crypto = cm
	return nil
}

func (t *Transport) runSync(ctx context.Context, done chan struct{}) {
	defer close(done)

	t.logger.Info("sync started", "user_id", t.cfg.UserID)
	err := t.client.SyncWithContext(ctx)
	if ctx.Err() != nil {
		return
	}

	reason := "sync stopped"
	if err != nil {
		reason = err.Error()
	}
	t.logger.Warn("sync ended", "reason", reason)
	t.emitLifecycle(supervisor.Disconnected(reason))
}

func (t *Transport) stopSyncLoop() {
	t.mu.Lock()
	cancel, done := t.stopSync, t.syncDone
	t.stopSync, t.syncDone = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	t.client.StopSync()
	<-done
}

// Close stops syncing and releases the crypto store. Safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.stopSyncLoop()

		t.mu.Lock()
		err = t.crypto.Close()
		t.mu.Unlock()
	})
	return err
}

func (t *Transport) handleMessage(ctx context.Context, evt *event.Event) {
	t.mu.Lock()
	since := t.startedAt
	t.mu.Unlock()

	ev, ok := t.inboundEvent(ctx, evt, since)
	if !ok {
		return
	}

	select {
	case t.events <- ev:
	case <-t.done:
	default:
		t.logger.Warn("inbound buffer full, dropping message", "room", ev.ConversationID, "event_id", ev.MessageID)
	}
}

// inboundEvent filters and converts a room message. Messages sent before the
// transport first connected are history and are skipped. Without an allow
// list only direct rooms are answered, since a room is one conversation.
func (t *Transport) inboundEvent(ctx context.Context, evt *event.Event, since time.Time) (dispatch.Event, bool) {
	if evt.Sender == t.client.UserID {
		return dispatch.Event{}, false
	}
	if isStale(evt.Timestamp, since) {
		return dispatch.Event{}, false
	}
	if !roomAllowed(t.allowed, evt.RoomID.String()) {
		t.logger.Debug("ignoring message from non-allowed room", "room", evt.RoomID.String())
		return dispatch.Event{}, false
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return dispatch.Event{}, false
	}
	if content.MsgType == event.MsgNotice {
		return dispatch.Event{}, false
	}

	if len(t.allowed) == 0 && !t.isDirectRoom(ctx, evt.RoomID) {
		t.logger.Debug("ignoring message from group room", "room", evt.RoomID.String())
		return dispatch.Event{}, false
	}

	return dispatch.Event{
		ConversationID: evt.RoomID.String(),
		MessageID:      evt.ID.String(),
		Text:           content.Body,
	}, true
}

// isDirectRoom reports whether exactly two users are joined to the room.
// Results are cached until the room's membership changes.
func (t *Transport) isDirectRoom(ctx context.Context, roomID id.RoomID) bool {
	t.mu.Lock()
	direct, cached := t.directRooms[roomID]
	t.mu.Unlock()
	if cached {
		return direct
	}

	n, err := t.memberCount(ctx, roomID)
	if err != nil {
		t.logger.Warn("failed to load room members", "room", roomID.String(), "error", err)
		return false
	}
	direct = n == 2

	t.mu.Lock()
	t.directRooms[roomID] = direct
	t.mu.Unlock()
	return direct
}

func (t *Transport) joinedMemberCount(ctx context.Context, roomID id.RoomID) (int, error) {
	resp, err := t.client.JoinedMembers(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return len(resp.Joined), nil
}

func (t *Transport) handleMembership(ctx context.Context, evt *event.Event) {
	t.mu.Lock()
	delete(t.directRooms, evt.RoomID)
	t.mu.Unlock()
}

func (t *Transport) emitLifecycle(ev supervisor.Event) {
	select {
	case t.lifecycle <- ev:
	case <-t.done:
	}
}

// SendText implements dispatch.Messenger. Text is treated as markdown.
func (t *Transport) SendText(ctx context.Context, conversationID, text string) error {
	content := textContent(text)
	if _, err := t.client.SendMessageEvent(ctx, id.RoomID(conversationID), event.EventMessage, content); err != nil {
		return fmt.Errorf("sending text: %w", err)
	}
	return nil
}

// SendMedia implements dispatch.Messenger. Matrix has no view-once media; the
// flag is ignored.
func (t *Transport) SendMedia(ctx context.Context, conversationID string, m *media.Media, opts media.SendOptions) error {
	up, err := t.client.UploadBytes(ctx, m.Data, m.MIME)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", m.Ref, err)
	}

	if opts.ViewOnce {
		t.logger.Debug("view-once not supported on matrix, sending normally", "media", m.Ref)
	}

	content := mediaContent(m, opts, up.ContentURI.CUString())
	if _, err := t.client.SendMessageEvent(ctx, id.RoomID(conversationID), event.EventMessage, content); err != nil {
		return fmt.Errorf("sending %s: %w", m.Ref, err)
	}
	return nil
}

// SetIndicator implements dispatch.Messenger. Matrix only has a typing
// notice, so recording shows as typing.
func (t *Transport) SetIndicator(ctx context.Context, conversationID string, kind script.IndicatorKind) error {
	if _, err := t.client.UserTyping(ctx, id.RoomID(conversationID), true, typingTimeout); err != nil {
		return fmt.Errorf("setting %s indicator: %w", kind, err)
	}
	return nil
}

func roomAllowed(allowed map[string]bool, roomID string) bool {
	return len(allowed) == 0 || allowed[roomID]
}

func isStale(timestampMillis int64, since time.Time) bool {
	if since.IsZero() {
		return false
	}
	return time.UnixMilli(timestampMillis).Before(since)
}
