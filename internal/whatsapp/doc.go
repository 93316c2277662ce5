// Package whatsapp connects the bot to WhatsApp through the multi-device
// protocol (go.mau.fi/whatsmeow).
//
// The device session lives in its own SQLite database. A fresh session pairs
// by QR code: the transport forwards each pairing code as a
// supervisor.QRChallenge event. whatsmeow's own reconnect loop is disabled;
// disconnects surface as lifecycle events and the supervisor decides when to
// call Connect again.
//
// Only one-to-one chats with users are delivered as inbound events. Group,
// broadcast, newsletter and own messages are ignored. Conversation IDs are
// chat JIDs in string form.
package whatsapp
