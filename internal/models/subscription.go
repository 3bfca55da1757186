package models

// Subscription types. The integer values are part of the persisted state
// contract.
const (
	SubGroup   = 0
	SubTeacher = 1
)

// Platform identifiers for notification routing.
const (
	PlatformTelegram = "TG"
	PlatformVK       = "VK"
)

// SubscriberKey identifies an addressable chat destination. ThreadID 0 means
// no sub-thread addressing.
type SubscriberKey struct {
	ChatID   int64
	ThreadID int
	Platform string
}

// Subscriber is a resolved notification recipient.
type Subscriber struct {
	ChatID   int64  `db:"chat_id"`
	ThreadID int    `db:"thread_id"`
	Platform string `db:"platform"`
}

// Key returns the identity tuple of the subscriber.
func (s Subscriber) Key() SubscriberKey {
	return SubscriberKey{ChatID: s.ChatID, ThreadID: s.ThreadID, Platform: s.Platform}
}

// Subscription is what a chat destination is subscribed to. At most one
// subscription exists per subscriber key; subscribing again replaces it.
type Subscription struct {
	ChatID   int64  `db:"chat_id"`
	ThreadID int    `db:"thread_id"`
	Platform string `db:"platform"`
	Type     int    `db:"sub_type"`
	Value    string `db:"sub_value"`
}
