package picking

import "stockroom/internal/domain"

// Session is the accumulated state of one picking pass over an order
type Session struct {
	Remaining []Line              `json:"remaining"`
	Records   []domain.PickRecord `json:"records"`
}

// NewSession starts a picking pass with every line of order outstanding
func NewSession(order *domain.Order) Session {
	return Session{
		Remaining: LinesFromOrder(order),
		Records:   []domain.PickRecord{},
	}
}

// Apply folds one pick into the session. On error the session is returned unchanged.
func (s Session) Apply(pick Pick) (Session, error) {
	remaining, record, err := Reconcile(s.Remaining, pick)
	if err != nil {
		return s, err
	}

	records := make([]domain.PickRecord, len(s.Records), len(s.Records)+1)
	copy(records, s.Records)

	return Session{
		Remaining: remaining,
		Records:   append(records, record),
	}, nil
}

// IsComplete reports whether nothing is left to pick
func (s Session) IsComplete() bool {
	return len(s.Remaining) == 0
}

// Mismatches returns the records whose picked quantity differs from the request
func (s Session) Mismatches() []domain.PickRecord {
	var out []domain.PickRecord
	for _, r := range s.Records {
		if r.Mismatch {
			out = append(out, r)
		}
	}
	return out
}
