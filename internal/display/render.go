package display

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// StimulusElementID is the id of the element wrapping the stimulus markup.
const StimulusElementID = "kbtrial-stimulus"

// Stimulus renders the stimulus wrapper and prompt. Markup is written as is.
func Stimulus(st State) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if st.Blank {
			return nil
		}

		attrs := ""
		if st.Responded {
			attrs += ` class="responded"`
		}
		if !st.Visible {
			attrs += ` style="visibility: hidden"`
		}

		if _, err := fmt.Fprintf(w, `<div id="%s"%s>`, StimulusElementID, attrs); err != nil {
			return err
		}
		if err := templ.Raw(st.Stimulus).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</div>`); err != nil {
			return err
		}
		if st.Prompt != "" {
			return templ.Raw(st.Prompt).Render(ctx, w)
		}
		return nil
	})
}

// PageOptions describes the document around a rendered stimulus.
type PageOptions struct {
	Title string
	// StateURL is polled by the client for display changes.
	StateURL string
	// KeysURL receives key events from the client.
	KeysURL   string
	CSRFToken string
}

// Page renders a full document around the stimulus for direct navigation.
func Page(o PageOptions, st State) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="csrf-token" content="%s"><title>%s</title></head>`+
				`<body data-state-url="%s" data-keys-url="%s"><main id="kbtrial-display">`,
			html.EscapeString(o.CSRFToken), html.EscapeString(o.Title),
			html.EscapeString(o.StateURL), html.EscapeString(o.KeysURL)); err != nil {
			return err
		}
		if err := Stimulus(st).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main><script src="/assets/kbtrial.js" defer></script></body></html>`)
		return err
	})
}
