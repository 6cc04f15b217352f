// Package dedupe drops events that were already handled within a time window.
//
// Chat platforms redeliver updates after reconnects and users press the
// same inline button twice. Transports key each inbound event (update id,
// event id, or chat id plus action) and skip it when Observe returns true.
package dedupe
