// Package matrix connects the bot to a Matrix homeserver with an existing
// access token (maunium.net/go/mautrix).
//
// Each room is a conversation; room IDs are conversation IDs. Connect checks
// the token with /whoami and starts a sync loop. When the loop ends on its
// own the transport reports supervisor.Disconnected and waits for the
// supervisor to call Connect again. Messages older than the first successful
// connect are room history and never reach the dispatcher. Without an allow
// list only direct rooms, with the bot and one other member, are answered.
//
// Outgoing text is rendered from markdown with goldmark. Media is uploaded to
// the content repository; voice notes carry the MSC3245 voice marker. Matrix
// has only a typing notice, so both indicator kinds show as typing.
//
// With encryption enabled the transport opens a mautrix crypto store under
// the data directory and can verify itself with a recovery key.
package matrix
