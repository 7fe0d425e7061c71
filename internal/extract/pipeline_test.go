package extract

import (
	"context"
	"testing"
	"time"

	"github.com/law-makers/hlsextract/internal/browser"
)

func newTestPipeline(fctx *fakeContext) *Pipeline {
	driver := &fakeDriver{handle: &fakeHandle{ctx: fctx}}
	pool := browser.NewPool(driver, nil, browser.PoolConfig{
		MaxConcurrent: 2,
		IdleTimeout:   time.Hour,
		MaxAge:        time.Hour,
	})
	return NewPipeline(pool, nil, "test-agent/1.0")
}

func TestExtractHappyPath(t *testing.T) {
	fctx := newFakeContext()
	fctx.cookies = []browser.Cookie{{Name: "sid", Value: "abc123"}}
	p := newTestPipeline(fctx)

	resultCh := make(chan struct {
		manifest string
		headers  map[string]string
		cookies  *string
		err      error
	}, 1)

	go func() {
		res, err := p.Extract(context.Background(), Request{
			EmbedURL: "https://player.example.com/embed/42",
			Timeout:  5 * time.Second,
			Priority: 0,
		})
		resultCh <- struct {
			manifest string
			headers  map[string]string
			cookies  *string
			err      error
		}{res.ManifestURL, res.Headers, res.Cookies, err}
	}()

	<-fctx.routed
	route := fctx.deliver("https://cdn.example.com/hls/master.m3u8", browser.ResourceOther, map[string]string{"Referer": "https://player.example.com/iframe"})
	if !route.aborted {
		t.Fatal("expected the manifest request to be aborted")
	}

	out := <-resultCh
	if out.err != nil {
		t.Fatalf("unexpected error: %v", out.err)
	}
	if out.manifest != "https://cdn.example.com/hls/master.m3u8" {
		t.Fatalf("unexpected manifest URL: %s", out.manifest)
	}
	if out.headers["Referer"] != "https://player.example.com/" {
		t.Fatalf("unexpected referer header: %v", out.headers)
	}
	if out.cookies == nil || *out.cookies != "sid=abc123" {
		t.Fatalf("unexpected cookie header: %v", out.cookies)
	}
}

func TestExtractSegmentPlaylistIsNotTreatedAsManifest(t *testing.T) {
	fctx := newFakeContext()
	p := newTestPipeline(fctx)

	resultCh := make(chan error, 1)
	go func() {
		_, err := p.Extract(context.Background(), Request{
			EmbedURL: "https://player.example.com/embed/42",
			Timeout:  5 * time.Second,
			Priority: 0,
		})
		resultCh <- err
	}()

	<-fctx.routed

	segment := fctx.deliver("https://cdn.example.com/hls/chunk0.ts.m3u8", browser.ResourceOther, nil)
	if segment.aborted {
		t.Fatal("segment playlist must not be aborted as a manifest")
	}
	if !segment.continued {
		t.Fatal("segment playlist request should be continued")
	}

	master := fctx.deliver("https://cdn.example.com/hls/playlist.m3u8", browser.ResourceOther, nil)
	if !master.aborted {
		t.Fatal("expected the real manifest request to be aborted")
	}

	if err := <-resultCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractTimesOutWithoutManifest(t *testing.T) {
	fctx := newFakeContext()
	p := newTestPipeline(fctx)

	_, err := p.Extract(context.Background(), Request{
		EmbedURL: "https://player.example.com/embed/42",
		Timeout:  50 * time.Millisecond,
		Priority: 0,
	})
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExtractBlocksKnownTrackingRequests(t *testing.T) {
	fctx := newFakeContext()
	p := newTestPipeline(fctx)

	resultCh := make(chan error, 1)
	go func() {
		_, err := p.Extract(context.Background(), Request{
			EmbedURL: "https://player.example.com/embed/42",
			Timeout:  5 * time.Second,
			Priority: 0,
		})
		resultCh <- err
	}()

	<-fctx.routed

	tracker := fctx.deliver("https://www.google-analytics.com/collect", browser.ResourceXHR, nil)
	if !tracker.aborted {
		t.Fatal("expected analytics request to be aborted")
	}

	manifest := fctx.deliver("https://cdn.example.com/hls/playlist.m3u8", browser.ResourceOther, nil)
	if !manifest.aborted {
		t.Fatal("expected manifest request to be aborted")
	}

	if err := <-resultCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
