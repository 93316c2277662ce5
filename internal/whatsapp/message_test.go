// ABOUTME: Tests for whatsmeow translation helpers
// ABOUTME: Covers chat filtering, text extraction, JID parsing and media message construction

package whatsapp

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
)

func userJID(user string) types.JID {
	return types.NewJID(user, types.DefaultUserServer)
}

func message(chat types.JID, fromMe bool, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:     chat,
				Sender:   chat,
				IsFromMe: fromMe,
			},
			ID: "3EB0C0FFEE",
		},
		Message: msg,
	}
}

func TestInboundEvent(t *testing.T) {
	text := &waE2E.Message{Conversation: proto.String("oi")}

	tests := []struct {
		name   string
		msg    *events.Message
		wantOK bool
	}{
		{"direct chat", message(userJID("5511999990000"), false, text), true},
		{"hidden user chat", message(types.NewJID("12345", types.HiddenUserServer), false, text), true},
		{"own message", message(userJID("5511999990000"), true, text), false},
		{"group", message(types.NewJID("1203630", types.GroupServer), false, text), false},
		{"broadcast", message(types.StatusBroadcastJID, false, text), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := inboundEvent(tt.msg)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.msg.Info.Chat.String(), ev.ConversationID)
				assert.Equal(t, "3EB0C0FFEE", ev.MessageID)
				assert.Equal(t, "oi", ev.Text)
			}
		})
	}
}

func TestInboundEvent_MediaWithoutTextStillCounts(t *testing.T) {
	msg := message(userJID("5511999990000"), false, &waE2E.Message{
		AudioMessage: &waE2E.AudioMessage{PTT: proto.Bool(true)},
	})

	ev, ok := inboundEvent(msg)
	require.True(t, ok)
	assert.Empty(t, ev.Text)
}

func TestMessageText(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("link")}}, "link"},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("pic")}}, "pic"},
		{"video caption", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{Caption: proto.String("clip")}}, "clip"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messageText(tt.msg))
		})
	}
}

func TestParseChat(t *testing.T) {
	jid, err := parseChat("5511999990000@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", jid.User)

	_, err = parseChat("1203630@g.us")
	assert.Error(t, err, "groups are not conversations")

	_, err = parseChat("not a jid@@")
	assert.Error(t, err)
}

func TestUploadType(t *testing.T) {
	assert.Equal(t, whatsmeow.MediaAudio, uploadType(media.KindAudio))
	assert.Equal(t, whatsmeow.MediaVideo, uploadType(media.KindVideo))
	assert.Equal(t, whatsmeow.MediaImage, uploadType(media.KindImage))
	assert.Equal(t, whatsmeow.MediaDocument, uploadType(media.KindDocument))
}

func TestPresenceMedia(t *testing.T) {
	assert.Equal(t, types.ChatPresenceMediaText, presenceMedia(script.IndicatorTyping))
	assert.Equal(t, types.ChatPresenceMediaAudio, presenceMedia(script.IndicatorRecording))
}

func TestBuildMediaMessage(t *testing.T) {
	up := whatsmeow.UploadResponse{
		URL:        "https://mmg.whatsapp.net/x",
		DirectPath: "/v/x",
		MediaKey:   []byte("key"),
		FileLength: 42,
	}

	t.Run("voice note", func(t *testing.T) {
		msg := buildMediaMessage(up, &media.Media{Kind: media.KindAudio, MIME: "audio/ogg; codecs=opus"}, media.SendOptions{Voice: true})
		require.NotNil(t, msg.GetAudioMessage())
		assert.True(t, msg.GetAudioMessage().GetPTT())
		assert.Equal(t, "audio/ogg; codecs=opus", msg.GetAudioMessage().GetMimetype())
		assert.Equal(t, uint64(42), msg.GetAudioMessage().GetFileLength())
	})

	t.Run("plain audio", func(t *testing.T) {
		msg := buildMediaMessage(up, &media.Media{Kind: media.KindAudio, MIME: "audio/mpeg"}, media.SendOptions{})
		assert.False(t, msg.GetAudioMessage().GetPTT())
	})

	t.Run("view once video", func(t *testing.T) {
		msg := buildMediaMessage(up, &media.Media{Kind: media.KindVideo, MIME: "video/mp4"}, media.SendOptions{ViewOnce: true, Caption: "watch"})
		require.NotNil(t, msg.GetVideoMessage())
		assert.True(t, msg.GetVideoMessage().GetViewOnce())
		assert.Equal(t, "watch", msg.GetVideoMessage().GetCaption())
		assert.Equal(t, "/v/x", msg.GetVideoMessage().GetDirectPath())
	})

	t.Run("image", func(t *testing.T) {
		msg := buildMediaMessage(up, &media.Media{Kind: media.KindImage, MIME: "image/jpeg"}, media.SendOptions{})
		require.NotNil(t, msg.GetImageMessage())
		assert.False(t, msg.GetImageMessage().GetViewOnce())
		assert.Nil(t, msg.GetImageMessage().Caption)
	})

	t.Run("document", func(t *testing.T) {
		msg := buildMediaMessage(up, &media.Media{Kind: media.KindDocument, MIME: "application/pdf", FileName: "price.pdf"}, media.SendOptions{})
		require.NotNil(t, msg.GetDocumentMessage())
		assert.Equal(t, "price.pdf", msg.GetDocumentMessage().GetFileName())
	})
}

func TestWALoggerBridgesToSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	wl := newWALogger(logger, "client")
	wl.Infof("connected to %s", "web.whatsapp.com")
	wl.Debugf("hidden %d", 1)
	wl.Sub("socket").Warnf("frame dropped")

	out := buf.String()
	assert.Contains(t, out, "connected to web.whatsapp.com")
	assert.Contains(t, out, "module=client")
	assert.Contains(t, out, "submodule=socket")
	assert.NotContains(t, out, "hidden")
}
