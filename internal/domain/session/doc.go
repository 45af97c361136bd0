// Package session manages the single active work session.
//
// A session is the user's declared focus: a task domain, a set of
// onboarding question/answer pairs, and an end time. It lives in the
// shared KV store so every component, and every gateway instance
// pointing at the same store, sees the same record.
//
// Expiry is lazy: nothing rewrites the record when the end time passes.
// A session whose EndTime is behind the clock simply stops counting as
// active the next time anyone asks.
//
// Example Usage:
//
//	manager := session.NewManager(store, logger)
//	s, err := manager.Start(ctx, "writing a thesis", 25*time.Minute, qa)
//	active := manager.Active(ctx)
//	err = manager.End(ctx)
package session
