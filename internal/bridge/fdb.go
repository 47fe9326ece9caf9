package bridge

import (
	"iter"
	"net"
	"time"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
)

// UnknownMember is reported for forwarding entries whose port has no
// current member.
const UnknownMember = "unknown"

// Record is one forwarding database entry.
type Record struct {
	MAC    net.HardwareAddr `yaml:"mac"`
	Port   uint16           `yaml:"port"`
	Member string           `yaml:"member"`
	Local  bool             `yaml:"local"`
	Age    time.Duration    `yaml:"age"`
}

// ForwardingTable yields the bridge's learned and local addresses. The
// table is read in one pass when iteration starts, so every range sees a
// fresh snapshot.
func (b *Bridge) ForwardingTable() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		raw, err := b.Channel().Tables().ReadFile(b.sysfs("brforward"))
		if err != nil {
			yield(Record{}, errors.Wrapf(err, errors.KindUnavailable, "failed to read forwarding table of %s", b.Name()))
			return
		}
		ps, err := b.ports()
		if err != nil {
			yield(Record{}, err)
			return
		}
		byPort := make(map[uint16]string, len(ps))
		for _, p := range ps {
			byPort[p.no] = p.name
		}

		for e, err := range ifreq.FDBEntries(raw) {
			if err != nil {
				yield(Record{}, err)
				return
			}
			member, ok := byPort[e.Port]
			if !ok {
				member = UnknownMember
			}
			rec := Record{MAC: e.MAC, Port: e.Port, Member: member, Local: e.Local, Age: e.Age()}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
