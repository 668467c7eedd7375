package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters for the student-portal timetable page.
const (
	DefaultWaitSelector = "table.uoa_gridborder_cal"
	DefaultTimeoutSec   = 60
)

// RenderOptions defines parameters for a Chromium-based page capture.
type RenderOptions struct {
	// URL of the timetable page, e.g. the "My Weekly Schedule" view. When
	// the portal shows it inside a frame, use the frame's own URL.
	URL string

	// WaitSelector must match before the DOM is read. If empty,
	// DefaultWaitSelector is used.
	WaitSelector string

	// UserDataDir points Chromium at an existing profile so a logged-in
	// portal session can be reused. Empty uses a throwaway profile.
	UserDataDir string

	// Headless runs Chromium without a window. A visible window is needed
	// for the first, interactive single sign-on.
	Headless bool

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration
}

// RenderedHTML launches Chromium via chromedp, navigates to opts.URL, waits
// until the timetable grid is in the DOM and returns the page's outer HTML.
//
// The portal renders the grid with scripts after sign-on, so the static
// response body usually does not contain it.
func RenderedHTML(parentCtx context.Context, opts RenderOptions) (string, error) {
	if opts.URL == "" {
		return "", fmt.Errorf("capture: URL is required")
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = DefaultWaitSelector
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Apply timeout to the entire capture sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady(opts.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return html, nil
}
