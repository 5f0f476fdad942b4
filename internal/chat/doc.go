// Package chat holds per-conversation message state and the streaming reducer
// that fills assistant replies from the backend's line-framed response.
//
// # Streaming
//
// The send endpoint answers with lines of the form
//
//	data: "plain text chunk"
//	data: {"type":"thinking","data":{"content":"..."}}
//	data: {"type":"thinking_end"}
//	data: {"type":"content","data":{"content":"..."}}
//	data: [DONE]
//
// Every read from the response body is one tick. A Reducer takes the whole
// buffer received so far, decodes only the lines completed since the previous
// tick and returns a Delta. A line cut in half by the network is held back
// until its newline arrives. Frames that fail to decode are logged and
// skipped; nothing after [DONE] is applied.
//
// # Sessions
//
// A Session starts one Task per send. At most one task streams in a
// conversation at a time; a second Send returns ErrStreamInFlight. Every task
// ends in exactly one Outcome, and its assistant message stops streaming:
//
//   - Completed: [DONE] or end of body, thinking panel collapsed
//   - Failed: transport error; an empty reply shows the error text
//   - TimedOut: the configured stream timeout elapsed
//   - Canceled: Cancel was called; received text is kept and marked incomplete
//   - Unauthorized: the backend answered 401; the stored token is cleared
//
// Conversations are independent: state for one conversation is never touched
// by a stream in another.
package chat
