package netdev

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
)

// Stats holds the sixteen per-device counters of /proc/net/dev.
type Stats struct {
	RxBytes      uint64 `yaml:"rx_bytes" json:"rx_bytes"`
	RxPackets    uint64 `yaml:"rx_packets" json:"rx_packets"`
	RxErrors     uint64 `yaml:"rx_errors" json:"rx_errors"`
	RxDropped    uint64 `yaml:"rx_dropped" json:"rx_dropped"`
	RxFifo       uint64 `yaml:"rx_fifo" json:"rx_fifo"`
	RxFrame      uint64 `yaml:"rx_frame" json:"rx_frame"`
	RxCompressed uint64 `yaml:"rx_compressed" json:"rx_compressed"`
	RxMulticast  uint64 `yaml:"rx_multicast" json:"rx_multicast"`
	TxBytes      uint64 `yaml:"tx_bytes" json:"tx_bytes"`
	TxPackets    uint64 `yaml:"tx_packets" json:"tx_packets"`
	TxErrors     uint64 `yaml:"tx_errors" json:"tx_errors"`
	TxDropped    uint64 `yaml:"tx_dropped" json:"tx_dropped"`
	TxFifo       uint64 `yaml:"tx_fifo" json:"tx_fifo"`
	TxCollisions uint64 `yaml:"tx_collisions" json:"tx_collisions"`
	TxCarrier    uint64 `yaml:"tx_carrier" json:"tx_carrier"`
	TxCompressed uint64 `yaml:"tx_compressed" json:"tx_compressed"`
}

// StatNames lists the counters in /proc/net/dev column order.
var StatNames = []string{
	"rx_bytes", "rx_packets", "rx_errors", "rx_dropped",
	"rx_fifo", "rx_frame", "rx_compressed", "rx_multicast",
	"tx_bytes", "tx_packets", "tx_errors", "tx_dropped",
	"tx_fifo", "tx_collisions", "tx_carrier", "tx_compressed",
}

func (s *Stats) fields() []*uint64 {
	return []*uint64{
		&s.RxBytes, &s.RxPackets, &s.RxErrors, &s.RxDropped,
		&s.RxFifo, &s.RxFrame, &s.RxCompressed, &s.RxMulticast,
		&s.TxBytes, &s.TxPackets, &s.TxErrors, &s.TxDropped,
		&s.TxFifo, &s.TxCollisions, &s.TxCarrier, &s.TxCompressed,
	}
}

// Map returns the counters keyed by StatNames.
func (s Stats) Map() map[string]uint64 {
	m := make(map[string]uint64, len(StatNames))
	for i, p := range s.fields() {
		m[StatNames[i]] = *p
	}
	return m
}

// ParseStats finds name in a /proc/net/dev table. found is false when the
// device has no row.
func ParseStats(table []byte, name string) (st Stats, found bool, err error) {
	sc := bufio.NewScanner(bytes.NewReader(table))
	for line := 0; sc.Scan(); line++ {
		if line < 2 {
			continue
		}
		dev, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(dev) != name {
			continue
		}
		cols := strings.Fields(rest)
		if len(cols) < len(StatNames) {
			return st, false, errors.Errorf(errors.KindDecoding, "statistics row for %s has %d columns, want %d", name, len(cols), len(StatNames))
		}
		for i, p := range st.fields() {
			v, err := strconv.ParseUint(cols[i], 10, 64)
			if err != nil {
				return Stats{}, false, errors.Wrapf(err, errors.KindDecoding, "bad %s counter for %s", StatNames[i], name)
			}
			*p = v
		}
		return st, true, nil
	}
	return st, false, sc.Err()
}

// Stats reads the device counters. ok is false when the device has no row
// in the table.
func (i *Interface) Stats() (st Stats, ok bool, err error) {
	table, err := i.ch.Tables().ReadFile(kernel.ProcNetDev)
	if err != nil {
		return Stats{}, false, errors.Wrap(err, errors.KindUnavailable, "failed to read device statistics")
	}
	return ParseStats(table, i.name)
}
