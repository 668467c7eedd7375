package capture

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Mode selects how a timetable URL is retrieved.
type Mode string

const (
	// ModeBrowser renders the page in Chromium (default).
	ModeBrowser Mode = "browser"
	// ModeHTTP performs a plain GET with the configured cookie.
	ModeHTTP Mode = "http"
)

// Source describes where the timetable HTML comes from. Exactly one of
// File or URL is used; File wins when both are set. File "-" reads Stdin.
type Source struct {
	File string
	URL  string
	Mode Mode

	Render   RenderOptions
	Fetcher  *Fetcher
	Stdin    io.Reader
	renderFn func(context.Context, RenderOptions) (string, error)
}

// Load returns the timetable page HTML.
func (s Source) Load(ctx context.Context) ([]byte, error) {
	switch {
	case s.File == "-":
		in := s.Stdin
		if in == nil {
			in = os.Stdin
		}
		body, err := io.ReadAll(io.LimitReader(in, maxPageSize))
		if err != nil {
			return nil, fmt.Errorf("capture: read stdin: %w", err)
		}
		return body, nil

	case s.File != "":
		body, err := os.ReadFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("capture: read %s: %w", s.File, err)
		}
		return body, nil

	case s.URL == "":
		return nil, fmt.Errorf("capture: no timetable file or URL configured")

	case s.Mode == ModeHTTP:
		f := s.Fetcher
		if f == nil {
			f = NewFetcher("", "")
		}
		res, err := f.Fetch(ctx, s.URL)
		if err != nil {
			return nil, err
		}
		return res.Body, nil

	default:
		render := s.renderFn
		if render == nil {
			render = RenderedHTML
		}
		opts := s.Render
		opts.URL = s.URL
		html, err := render(ctx, opts)
		if err != nil {
			return nil, err
		}
		return []byte(html), nil
	}
}
