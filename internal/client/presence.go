package client

import "sort"

// PresenceTracker holds the set of participants currently connected to
// the channel. Driven entirely by userOnline/userOffline events; nothing
// here is persisted.
type PresenceTracker struct {
	online map[int64]Participant
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{online: make(map[int64]Participant)}
}

// Join adds a participant. A duplicate join for the same id is a no-op.
func (p *PresenceTracker) Join(u Participant) {
	if _, ok := p.online[u.ID]; ok {
		return
	}
	p.online[u.ID] = u
}

// Leave removes a participant by id. Removing an absent id is a no-op.
func (p *PresenceTracker) Leave(id int64) {
	delete(p.online, id)
}

func (p *PresenceTracker) Count() int {
	return len(p.online)
}

// Online returns the roster sorted by id for stable display.
func (p *PresenceTracker) Online() []Participant {
	out := make([]Participant, 0, len(p.online))
	for _, u := range p.online {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
