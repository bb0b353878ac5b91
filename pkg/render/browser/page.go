package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/matzehuels/ogforge/pkg/render"
)

// maskScript hides every element matching one of the given selectors.
const maskScript = `(selectors) => {
	for (const s of selectors) {
		document.querySelectorAll(s).forEach((el) => { el.style.visibility = 'hidden' })
	}
}`

// capture loads t in a fresh page and screenshots it. The page is closed on
// every return path.
func (r *Renderer) capture(ctx context.Context, b *rod.Browser, t target, rc *render.Context) ([]byte, error) {
	created, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer func() {
		if err := created.Close(); err != nil {
			r.logger.Debug("close page", "err", err)
		}
	}()
	page := created.Context(ctx)

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             rc.Width(),
		Height:            rc.Height(),
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: set viewport: %v", ErrPageCreate, err)
	}

	if err := r.load(page, t); err != nil {
		return nil, err
	}

	shot := rc.Options.Screenshot
	if shot != nil && len(shot.Mask) > 0 {
		if _, err := page.Eval(maskScript, shot.Mask); err != nil {
			rc.Warn(ctx, fmt.Sprintf("browser: mask %v: %v", shot.Mask, err))
		}
	}
	if shot != nil && shot.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(shot.Delay) * time.Millisecond):
		}
	}

	format, quality := proto.PageCaptureScreenshotFormatPng, 0
	if rc.Extension == "jpeg" {
		format, quality = proto.PageCaptureScreenshotFormatJpeg, JPEGQuality
	}
	timed := page.Timeout(r.cfg.CaptureTimeout)
	if shot != nil && shot.Selector != "" {
		el, err := timed.Element(shot.Selector)
		if err != nil {
			return nil, fmt.Errorf("%w: selector %q: %v", ErrCapture, shot.Selector, err)
		}
		data, err := el.Screenshot(format, quality)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCapture, err)
		}
		return data, nil
	}
	req := &proto.PageCaptureScreenshot{Format: format}
	if quality > 0 {
		req.Quality = &quality
	}
	data, err := timed.Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return data, nil
}

// load navigates or writes the document, then waits for the load event and
// a quiet network.
func (r *Renderer) load(page *rod.Page, t target) error {
	nav := page.Timeout(r.cfg.NavigationTimeout)
	idle := nav.WaitRequestIdle(idleWindow, nil, nil, nil)

	var err error
	if t.url != "" {
		err = nav.Navigate(t.url)
	} else {
		err = nav.SetDocumentContent(t.html)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	idle()
	return nil
}
