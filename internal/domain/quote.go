package domain

import "time"

// Quote is one hitokoto as returned by the quote service.
// A widget holds at most one Quote and replaces it wholesale.
type Quote struct {
	ID       int
	UUID     string
	Text     string
	Category Category

	// From is the work the quote comes from.
	From string

	// FromWho is the person it is attributed to. Optional.
	FromWho string

	Creator    string
	CreatorUID int
	Reviewer   int
	CommitFrom string
	CreatedAt  time.Time
	Length     int
}

// Attribution returns the alternate attribution when present, else the source.
func (q *Quote) Attribution() string {
	if q.FromWho != "" {
		return q.FromWho
	}

	return q.From
}
