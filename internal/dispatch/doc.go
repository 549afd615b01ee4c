// Package dispatch implements the Message Dispatcher component.
//
// The Message Dispatcher:
//   - Drops blank frames
//   - Suppresses an exact repeat of the immediately preceding frame
//     (single-slot memo, not a window)
//   - Answers ping frames with a pong echoing timestamp and request id
//   - Forwards everything else, including frames that fail structured
//     parsing, as raw text on a broadcast stream
package dispatch
