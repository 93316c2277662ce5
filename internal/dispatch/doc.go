// Package dispatch runs scripted conversation stages.
//
// # Dispatcher
//
// Dispatcher.HandleEvent is called once per inbound message:
//
//  1. Finalized conversations are ignored.
//  2. Unseen conversations start at stage.First.
//  3. A stage whose dispatch guard is already set is a duplicate and is
//     suppressed.
//  4. The guard is set, the stage's steps run, and the conversation moves to
//     the successor stage (or is finalized after the terminal stage).
//
// The pass-through stage runs no steps and cascades into its successor
// within the same call. A stored stage outside the enumeration resets the
// conversation and returns ErrUnknownStage.
//
// # Delivery
//
// AtMostOnce (default) sets the guard before any side effect: a failed stage
// is not retried by a re-delivered event and the conversation stays at that
// stage. AtLeastOnce sets the guard only after every step succeeded, so the
// next inbound event retries the stage from its first step.
//
// # Executor
//
// Executor interprets script steps in order against a Messenger, loading
// media through a MediaSource and sleeping through a Clock. Tests inject fakes
// for all three and assert the exact call sequence.
package dispatch
