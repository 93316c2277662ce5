// ABOUTME: Pure helpers translating between whatsmeow types and bot types
// ABOUTME: Chat filtering, inbound text extraction, outgoing media message construction

package whatsapp

import (
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/2389/coven-script/internal/dispatch"
	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
)

// isDirectChat reports whether jid is a one-to-one chat with a user, by phone
// number or by hidden LID.
func isDirectChat(jid types.JID) bool {
	return jid.Server == types.DefaultUserServer || jid.Server == types.HiddenUserServer
}

// inboundEvent converts a whatsmeow message into a dispatch event. The second
// result is false for messages the bot must ignore.
func inboundEvent(v *events.Message) (dispatch.Event, bool) {
	if v == nil || v.Info.IsFromMe || !isDirectChat(v.Info.Chat) {
		return dispatch.Event{}, false
	}
	return dispatch.Event{
		ConversationID: v.Info.Chat.String(),
		MessageID:      v.Info.ID,
		Text:           messageText(v.Message),
	}, true
}

// messageText returns the text or caption of msg, empty for media without one.
func messageText(msg *waE2E.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage().GetText() != "":
		return msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage().GetCaption() != "":
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage().GetCaption() != "":
		return msg.GetVideoMessage().GetCaption()
	default:
		return ""
	}
}

// parseChat parses a conversation ID back into a chat JID.
func parseChat(conversationID string) (types.JID, error) {
	jid, err := types.ParseJID(conversationID)
	if err != nil {
		return types.JID{}, fmt.Errorf("invalid chat id %q: %w", conversationID, err)
	}
	if !isDirectChat(jid) {
		return types.JID{}, fmt.Errorf("chat id %q is not a direct chat", conversationID)
	}
	return jid, nil
}

// uploadType maps a media kind onto whatsmeow's upload category.
func uploadType(kind media.Kind) whatsmeow.MediaType {
	switch kind {
	case media.KindAudio:
		return whatsmeow.MediaAudio
	case media.KindVideo:
		return whatsmeow.MediaVideo
	case media.KindImage:
		return whatsmeow.MediaImage
	default:
		return whatsmeow.MediaDocument
	}
}

// presenceMedia maps an indicator onto WhatsApp's composing presence flavor.
func presenceMedia(kind script.IndicatorKind) types.ChatPresenceMedia {
	if kind == script.IndicatorRecording {
		return types.ChatPresenceMediaAudio
	}
	return types.ChatPresenceMediaText
}

// buildMediaMessage wraps an uploaded file in the message type for its kind.
func buildMediaMessage(up whatsmeow.UploadResponse, m *media.Media, opts media.SendOptions) *waE2E.Message {
	var caption *string
	if opts.Caption != "" {
		caption = proto.String(opts.Caption)
	}

	switch m.Kind {
	case media.KindAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(m.MIME),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			PTT:           proto.Bool(opts.Voice),
		}}

	case media.KindVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       caption,
			Mimetype:      proto.String(m.MIME),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ViewOnce:      viewOnce(opts),
		}}

	case media.KindImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       caption,
			Mimetype:      proto.String(m.MIME),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ViewOnce:      viewOnce(opts),
		}}

	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Title:         proto.String(m.FileName),
			FileName:      proto.String(m.FileName),
			Caption:       caption,
			Mimetype:      proto.String(m.MIME),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	}
}

func viewOnce(opts media.SendOptions) *bool {
	if !opts.ViewOnce {
		return nil
	}
	return proto.Bool(true)
}
