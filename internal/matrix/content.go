// ABOUTME: Builds Matrix message event content for text and media
// ABOUTME: Renders markdown to HTML with goldmark and maps media kinds to msgtypes

package matrix

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-script/internal/media"
)

// textContent builds a text message. A formatted body is attached only when
// the markdown renders to more than a single plain paragraph.
func textContent(text string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}

	html, ok := renderMarkdown(text)
	if ok {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}
	return content
}

// renderMarkdown converts markdown to HTML. ok is false when rendering failed
// or produced nothing beyond a plain paragraph of the input.
func renderMarkdown(text string) (string, bool) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", false
	}

	html := strings.TrimSpace(buf.String())
	plain := "<p>" + text + "</p>"
	if html == "" || html == plain {
		return "", false
	}
	return html, true
}

func msgType(kind media.Kind) event.MessageType {
	switch kind {
	case media.KindAudio:
		return event.MsgAudio
	case media.KindVideo:
		return event.MsgVideo
	case media.KindImage:
		return event.MsgImage
	default:
		return event.MsgFile
	}
}

// mediaContent builds a media message pointing at an uploaded file.
func mediaContent(m *media.Media, opts media.SendOptions, uri id.ContentURIString) *event.MessageEventContent {
	body := m.FileName
	if opts.Caption != "" {
		body = opts.Caption
	}

	content := &event.MessageEventContent{
		MsgType:  msgType(m.Kind),
		Body:     body,
		FileName: m.FileName,
		URL:      uri,
		Info: &event.FileInfo{
			MimeType: m.MIME,
			Size:     len(m.Data),
		},
	}

	if m.Kind == media.KindAudio && opts.Voice {
		content.MSC3245Voice = &event.MSC3245Voice{}
		content.MSC1767Audio = &event.MSC1767Audio{}
	}
	return content
}
