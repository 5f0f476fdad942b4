// Package dedupe rejects repeated chat submissions.
//
// A Window remembers submission keys for a fixed duration. The chat session
// asks it before starting a stream, so a double-pressed Enter or a pasted
// message sent twice in quick succession produces one request, not two.
package dedupe
