// Package stage defines the fixed, linearly ordered stages a scripted
// conversation moves through.
//
// Stages are a closed enumeration. Each stage has exactly one successor except
// the terminal stage, after which the conversation is finalized:
//
//	initial -> waiting_preview -> waiting_peladinha -> waiting_promise ->
//	waiting_for_price_response -> waiting_final_promise -> sending_link ->
//	waiting_before_audio6 -> waiting_after_audio6 -> (finalized)
//
// WaitingForPriceResponse is a pass-through stage: it has no steps of its own
// and cascades straight into its successor.
//
// Stage names round-trip through String and Parse, and Stage implements
// encoding.TextMarshaler so it can be used in YAML/TOML keys and SQL columns.
package stage
