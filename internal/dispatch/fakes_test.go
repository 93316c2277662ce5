// ABOUTME: Test doubles for the dispatch package
// ABOUTME: Recording messenger, in-memory media source, and a clock that never sleeps

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
)

// fakeMessenger records every call as "kind:conversation:detail".
type fakeMessenger struct {
	mu    sync.Mutex
	calls []string
	opts  []media.SendOptions
	// fail maps a detail (text or media ref) to the error to return for it.
	fail map[string]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{fail: make(map[string]error)}
}

func (f *fakeMessenger) SendText(ctx context.Context, id, text string) error {
	return f.add("text", id, text)
}

func (f *fakeMessenger) SendMedia(ctx context.Context, id string, m *media.Media, opts media.SendOptions) error {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	return f.add("media", id, m.Ref)
}

func (f *fakeMessenger) SetIndicator(ctx context.Context, id string, kind script.IndicatorKind) error {
	return f.add("indicator", id, string(kind))
}

func (f *fakeMessenger) add(kind, id, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%s:%s", kind, id, detail))
	return f.fail[detail]
}

func (f *fakeMessenger) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeMessenger) FailOn(detail string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[detail] = err
}

func (f *fakeMessenger) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = make(map[string]error)
}

// fakeMedia serves every ref except those listed as missing.
type fakeMedia struct {
	missing map[string]bool
}

func (f *fakeMedia) Open(ref string) (*media.Media, error) {
	if f.missing[ref] {
		return nil, fmt.Errorf("%w: %s", media.ErrMediaNotFound, ref)
	}
	return &media.Media{
		Ref:      ref,
		FileName: ref,
		MIME:     "application/octet-stream",
		Kind:     media.KindDocument,
		Data:     []byte(ref),
	}, nil
}

// fakeClock records requested sleeps and returns immediately.
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
