package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/prasenjit/firescope/internal/models"
)

// Browser captures Firestore traffic from the tabs of a running Chrome
// instance over the DevTools protocol. Each page target is its own tab
// context.
type Browser struct {
	controlURL string
	recorder   Recorder
	logger     *slog.Logger

	mu       sync.Mutex
	statuses map[string]int
	watched  map[proto.TargetTargetID]bool
}

// NewBrowser creates a capture source for the Chrome instance behind the
// DevTools websocket URL controlURL
func NewBrowser(controlURL string, recorder Recorder, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		controlURL: controlURL,
		recorder:   recorder,
		logger:     logger,
		statuses:   make(map[string]int),
		watched:    make(map[proto.TargetTargetID]bool),
	}
}

// Run connects to the browser and captures every open and future page
// until ctx is cancelled
func (b *Browser) Run(ctx context.Context) error {
	browser := rod.New().ControlURL(b.controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	defer browser.Close()

	b.logger.Info("browser capture connected", "url", b.controlURL)

	pages, err := browser.Pages()
	if err != nil {
		return fmt.Errorf("browser: list pages: %w", err)
	}
	for _, page := range pages {
		b.watch(ctx, page)
	}

	wait := browser.EachEvent(func(e *proto.TargetTargetCreated) {
		if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
			return
		}
		page, err := browser.PageFromTarget(e.TargetInfo.TargetID)
		if err != nil {
			b.logger.Warn("browser: attach page failed", "target", e.TargetInfo.TargetID, "error", err)
			return
		}
		b.watch(ctx, page)
	})

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(browser); err != nil {
		return fmt.Errorf("browser: discover targets: %w", err)
	}
	wait()

	return ctx.Err()
}

// watch enables the Network domain on page and forwards its events
func (b *Browser) watch(ctx context.Context, page *rod.Page) {
	b.mu.Lock()
	if b.watched[page.TargetID] {
		b.mu.Unlock()
		return
	}
	b.watched[page.TargetID] = true
	b.mu.Unlock()

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		b.logger.Warn("browser: enable network failed", "target", page.TargetID, "error", err)
		return
	}

	tab := string(page.TargetID)
	b.logger.Info("browser: watching tab", "tab", tab)

	wait := page.Context(ctx).EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			b.onRequest(tab, e, func() string {
				res, err := proto.NetworkGetRequestPostData{RequestID: e.RequestID}.Call(page)
				if err != nil {
					return ""
				}
				return res.PostData
			})
		},
		func(e *proto.NetworkResponseReceived) {
			b.onResponse(tab, e)
		},
		func(e *proto.NetworkLoadingFinished) {
			b.onDone(tab, e.RequestID)
		},
		func(e *proto.NetworkLoadingFailed) {
			b.onDone(tab, e.RequestID)
		},
	)

	go func() {
		wait()
		b.forgetTab(page.TargetID)
	}()
}

// forgetTab drops the bookkeeping of a tab whose event stream ended.
// Requests still in flight there never complete.
func (b *Browser) forgetTab(id proto.TargetTargetID) {
	prefix := requestKey(string(id), "")

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watched, id)
	for key := range b.statuses {
		if strings.HasPrefix(key, prefix) {
			delete(b.statuses, key)
		}
	}
}

func requestKey(tab string, id proto.NetworkRequestID) string {
	return tab + "/" + string(id)
}

// onRequest reports a request start. fetchPostData is used when the event
// announces a body without inlining it.
func (b *Browser) onRequest(tab string, e *proto.NetworkRequestWillBeSent, fetchPostData func() string) {
	req := e.Request
	if req == nil {
		return
	}

	body := req.PostData
	if body == "" && req.HasPostData && fetchPostData != nil {
		body = fetchPostData()
	}

	var contentType string
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Content-Type") {
			contentType = v.Str()
			break
		}
	}

	key := requestKey(tab, e.RequestID)
	if b.recorder.Observe(NewCall(key, req.URL, req.Method, tab, contentType, []byte(body))) == 0 {
		return
	}
	b.mu.Lock()
	b.statuses[key] = 0
	b.mu.Unlock()
}

// onResponse remembers the status of a buffered request until the load
// completes
func (b *Browser) onResponse(tab string, e *proto.NetworkResponseReceived) {
	if e.Response == nil {
		return
	}
	key := requestKey(tab, e.RequestID)

	b.mu.Lock()
	if _, ok := b.statuses[key]; ok {
		b.statuses[key] = e.Response.Status
	}
	b.mu.Unlock()
}

// onDone reports completion of a buffered request. A failed load without
// a response has status 0.
func (b *Browser) onDone(tab string, id proto.NetworkRequestID) {
	key := requestKey(tab, id)

	b.mu.Lock()
	status, ok := b.statuses[key]
	delete(b.statuses, key)
	b.mu.Unlock()

	if !ok {
		return
	}
	b.recorder.Complete(models.CompletionSignal{RequestID: key, StatusCode: status})
}
