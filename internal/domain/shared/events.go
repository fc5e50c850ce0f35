// Package shared contains common domain types, errors and events that are
// used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// User events
	EventUserRegistered EventType = "user.registered"

	// Gamification events
	EventXPAwarded    EventType = "gamification.xp_awarded"
	EventLevelUp      EventType = "gamification.level_up"
	EventBadgeGranted EventType = "gamification.badge_granted"
	EventStreakBroken EventType = "gamification.streak_broken"

	// Progression events
	EventLessonCompleted    EventType = "progression.lesson_completed"
	EventQuizSubmitted      EventType = "progression.quiz_submitted"
	EventChallengeSubmitted EventType = "progression.challenge_submitted"

	// Leaderboard events
	EventRankSynced     EventType = "leaderboard.rank_synced"
	EventRankSyncFailed EventType = "leaderboard.rank_sync_failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a new user account is created.
type UserRegisteredEvent struct {
	BaseEvent
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":     e.Username,
		"display_name": e.DisplayName,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(username, displayName string) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventUserRegistered, username),
		Username:    username,
		DisplayName: displayName,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Gamification Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted whenever the gamification engine awards XP.
type XPAwardedEvent struct {
	BaseEvent
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	NewTotal int64  `json:"new_total"`
	Source   string `json:"source"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":  e.Username,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(username string, amount, newTotal int64, source string) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, username),
		Username:  username,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when an XP award crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	Username string `json:"username"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":  e.Username,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(username string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, username),
		Username:  username,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// BadgeGrantedEvent is emitted when a badge rule fires for the first time.
type BadgeGrantedEvent struct {
	BaseEvent
	Username  string `json:"username"`
	BadgeCode string `json:"badge_code"`
	Tier      string `json:"tier"`
}

// Payload implements Event interface.
func (e BadgeGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":   e.Username,
		"badge_code": e.BadgeCode,
		"tier":       e.Tier,
	}
}

// NewBadgeGrantedEvent creates a new BadgeGrantedEvent.
func NewBadgeGrantedEvent(username, badgeCode, tier string) BadgeGrantedEvent {
	return BadgeGrantedEvent{
		BaseEvent: NewBaseEvent(EventBadgeGranted, username),
		Username:  username,
		BadgeCode: badgeCode,
		Tier:      tier,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonCompletedEvent is emitted when a lesson completion record is created.
type LessonCompletedEvent struct {
	BaseEvent
	Username string `json:"username"`
	LessonID int64  `json:"lesson_id"`
	XPReward int64  `json:"xp_reward"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":  e.Username,
		"lesson_id": e.LessonID,
		"xp_reward": e.XPReward,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(username string, lessonID, xpReward int64) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, username),
		Username:  username,
		LessonID:  lessonID,
		XPReward:  xpReward,
	}
}

// QuizSubmittedEvent is emitted when a quiz attempt has been graded.
type QuizSubmittedEvent struct {
	BaseEvent
	Username       string `json:"username"`
	QuizID         int64  `json:"quiz_id"`
	CorrectAnswers int    `json:"correct_answers"`
	TotalQuestions int    `json:"total_questions"`
	XPAwarded      int64  `json:"xp_awarded"`
}

// Payload implements Event interface.
func (e QuizSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":        e.Username,
		"quiz_id":         e.QuizID,
		"correct_answers": e.CorrectAnswers,
		"total_questions": e.TotalQuestions,
		"xp_awarded":      e.XPAwarded,
	}
}

// NewQuizSubmittedEvent creates a new QuizSubmittedEvent.
func NewQuizSubmittedEvent(username string, quizID int64, correct, total int, xpAwarded int64) QuizSubmittedEvent {
	return QuizSubmittedEvent{
		BaseEvent:      NewBaseEvent(EventQuizSubmitted, username),
		Username:       username,
		QuizID:         quizID,
		CorrectAnswers: correct,
		TotalQuestions: total,
		XPAwarded:      xpAwarded,
	}
}

// ChallengeSubmittedEvent is emitted when a challenge submission is accepted.
type ChallengeSubmittedEvent struct {
	BaseEvent
	Username    string `json:"username"`
	ChallengeID int64  `json:"challenge_id"`
	XPReward    int64  `json:"xp_reward"`
}

// Payload implements Event interface.
func (e ChallengeSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username":     e.Username,
		"challenge_id": e.ChallengeID,
		"xp_reward":    e.XPReward,
	}
}

// NewChallengeSubmittedEvent creates a new ChallengeSubmittedEvent.
func NewChallengeSubmittedEvent(username string, challengeID, xpReward int64) ChallengeSubmittedEvent {
	return ChallengeSubmittedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeSubmitted, username),
		Username:    username,
		ChallengeID: challengeID,
		XPReward:    xpReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankSyncFailedEvent is emitted when the rank index could not be updated
// after a successful ledger write. The award itself has already succeeded;
// subscribers and the reconciliation job converge the index afterwards.
type RankSyncFailedEvent struct {
	BaseEvent
	Username string `json:"username"`
	XP       int64  `json:"xp"`
	Reason   string `json:"reason"`
}

// Payload implements Event interface.
func (e RankSyncFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username": e.Username,
		"xp":       e.XP,
		"reason":   e.Reason,
	}
}

// NewRankSyncFailedEvent creates a new RankSyncFailedEvent.
func NewRankSyncFailedEvent(username string, xp int64, reason string) RankSyncFailedEvent {
	return RankSyncFailedEvent{
		BaseEvent: NewBaseEvent(EventRankSyncFailed, username),
		Username:  username,
		XP:        xp,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
