// Package conversation manages the conversation list and fans out message
// updates to whatever is rendering them.
//
// # Service
//
// Service mirrors the backend's conversation list and tracks the current
// selection:
//
//	svc := conversation.NewService(apiClient, prefs, logger)
//	svc.Fetch(ctx)
//	conv, _ := svc.Create(ctx, "Trip planning", "")
//
// Create puts the new conversation first and selects it. Delete clears the
// selection when the current conversation is deleted. Sorted lists pinned
// conversations first, each group ordered by most recent update. The current
// selection is persisted so Restore can pick it up in the next run.
//
// # Broadcaster
//
// Broadcaster implements chat.Publisher. A chat.Store publishes every change
// to it, and views subscribe per conversation:
//
//	updates, _ := b.Subscribe(ctx, conversationID)
//	for u := range updates {
//	    render(u.Message)
//	}
//
// Publish never blocks. A subscriber that falls a full buffer behind misses
// updates and should re-read the store.
package conversation
