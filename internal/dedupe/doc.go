// Package dedupe drops re-delivered inbound messages.
//
// Chat platforms redeliver messages after reconnects. The bot keys every
// inbound message by transport and platform message ID and asks the Cache
// whether it saw that key within the TTL; only unseen messages reach the
// dispatcher. The cache is bounded: when full, the oldest key is evicted.
package dedupe
