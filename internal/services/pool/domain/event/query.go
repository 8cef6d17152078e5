package event

import "github.com/louisbranch/cellarpool/internal/services/pool/domain/filter"

// Query pages through one pool's journal in sequence order.
type Query struct {
	AfterSeq uint64
	// Limit caps the result size; zero means no limit.
	Limit int
	// Filter narrows the page; nil matches every event.
	Filter *filter.Expr
}

// FilterValue resolves filter.EventFields against evt.
func (evt Event) FilterValue(name string) (any, bool) {
	switch name {
	case "type":
		return string(evt.Type), true
	case "actor":
		return string(evt.ActorID), true
	case "request_id":
		return evt.RequestID, true
	case "seq":
		return evt.Seq, true
	case "ts":
		return evt.Timestamp.UTC(), true
	default:
		return nil, false
	}
}
