package session

import "time"

// DefaultReactionTTL is how long a triggered reaction stays visible.
const DefaultReactionTTL = 3 * time.Second

// Reaction is one ephemeral emoji overlay.
type Reaction struct {
	ID        int64
	Emoji     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ReactionBus holds the currently visible reactions. Triggering is local
// only; nothing crosses the channel. Not safe for concurrent use; the
// orchestrator loop owns it.
type ReactionBus struct {
	now    func() time.Time
	ttl    time.Duration
	nextID int64
	active []Reaction
}

// NewReactionBus creates a bus with the given lifetime per reaction.
func NewReactionBus(ttl time.Duration, now func() time.Time) *ReactionBus {
	if ttl <= 0 {
		ttl = DefaultReactionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ReactionBus{now: now, ttl: ttl}
}

// Trigger adds one reaction and returns it. Expiry is timer-driven by the
// caller via Prune.
func (b *ReactionBus) Trigger(emoji string) Reaction {
	b.nextID++
	t := b.now()
	r := Reaction{
		ID:        b.nextID,
		Emoji:     emoji,
		CreatedAt: t,
		ExpiresAt: t.Add(b.ttl),
	}
	b.active = append(b.active, r)
	return r
}

// TTL returns the configured lifetime per reaction.
func (b *ReactionBus) TTL() time.Duration { return b.ttl }

// Prune drops expired reactions and reports whether anything changed.
func (b *ReactionBus) Prune() bool {
	t := b.now()
	kept := b.active[:0]
	for _, r := range b.active {
		if r.ExpiresAt.After(t) {
			kept = append(kept, r)
		}
	}
	changed := len(kept) != len(b.active)
	b.active = kept
	return changed
}

// Active returns a copy of the visible reactions in trigger order.
func (b *ReactionBus) Active() []Reaction {
	if len(b.active) == 0 {
		return nil
	}
	return append([]Reaction(nil), b.active...)
}
