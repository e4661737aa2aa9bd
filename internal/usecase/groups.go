package usecase

import "tg-chatdump/internal/domain"

// Unit is the atomic granularity for skip/fetch decisions and limit
// accounting: either a single ungrouped message or one full media album.
type Unit struct {
	GroupID int64
	Members []*domain.Message
}

// IsGroup reports whether the unit is a media album.
func (u *Unit) IsGroup() bool { return u.GroupID != 0 }

// PartitionUnits splits an ordered page of messages into units. Consecutive
// messages sharing a non-zero group id merge into one unit; everything else
// is a singleton. The scan is single-pass and preserves arrival order, so an
// album split across a page boundary surfaces as two partial units.
func PartitionUnits(msgs []*domain.Message) []Unit {
	var units []Unit
	for _, msg := range msgs {
		if msg.GroupID != 0 && len(units) > 0 && units[len(units)-1].GroupID == msg.GroupID {
			last := &units[len(units)-1]
			last.Members = append(last.Members, msg)
			continue
		}
		units = append(units, Unit{GroupID: msg.GroupID, Members: []*domain.Message{msg}})
	}
	return units
}
