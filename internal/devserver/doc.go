// Package devserver is a local stand-in for the assistant backend.
//
// It serves the same /api/v1 routes the client calls: token login and
// registration, conversation CRUD with pinning, paged history, the streaming
// send endpoint, and the skill and model catalogs. State lives in memory and
// is lost on restart.
//
// Streamed replies are written as data frames:
//
//	data: {"type":"thinking","data":{"content":"..."}}
//	data: {"type":"thinking_end"}
//	data: {"type":"content","data":{"content":"..."}}
//	data: [DONE]
//
// Options.ChunkDelay spaces the frames out so cancellation and timeouts can be
// exercised against a real socket. Options.Reply replaces the echo responder.
package devserver
