// Package metrics exposes device state and counters to Prometheus. Values
// are read from the kernel on every scrape; nothing is cached.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/ifctl/internal/bridge"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/logging"
	"grimm.is/ifctl/internal/netdev"
)

const namespace = "ifctl"

// Collector implements prometheus.Collector over a kernel channel.
type Collector struct {
	ch           *kernel.Channel
	physicalOnly bool
	log          *logging.Logger

	stats         []*prometheus.Desc
	up            *prometheus.Desc
	carrier       *prometheus.Desc
	speed         *prometheus.Desc
	info          *prometheus.Desc
	bridgeMembers *prometheus.Desc
	fdbEntries    *prometheus.Desc
	scrapeErrors  prometheus.Counter
}

// NewCollector returns a collector for the devices on ch. With
// physicalOnly set, virtual devices are skipped.
func NewCollector(ch *kernel.Channel, physicalOnly bool) *Collector {
	c := &Collector{
		ch:           ch,
		physicalOnly: physicalOnly,
		log:          logging.WithComponent("metrics"),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "interface", "up"),
			"Whether the interface is administratively up.",
			[]string{"device"}, nil),
		carrier: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "interface", "carrier"),
			"Whether the interface reports link.",
			[]string{"device"}, nil),
		speed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "interface", "speed_mbps"),
			"Negotiated link speed; 0 when unknown.",
			[]string{"device"}, nil),
		info: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "interface", "info"),
			"Static interface attributes.",
			[]string{"device", "mac", "physical"}, nil),
		bridgeMembers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bridge", "members"),
			"Number of devices enslaved to the bridge.",
			[]string{"bridge"}, nil),
		fdbEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bridge", "fdb_entries"),
			"Forwarding database entries by kind.",
			[]string{"bridge", "kind"}, nil),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Kernel reads that failed during collection.",
		}),
	}
	for _, name := range netdev.StatNames {
		c.stats = append(c.stats, prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "interface", name+"_total"),
			"Interface counter "+name+" from /proc/net/dev.",
			[]string{"device"}, nil))
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(out chan<- *prometheus.Desc) {
	for _, d := range c.stats {
		out <- d
	}
	out <- c.up
	out <- c.carrier
	out <- c.speed
	out <- c.info
	out <- c.bridgeMembers
	out <- c.fdbEntries
	c.scrapeErrors.Describe(out)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(out chan<- prometheus.Metric) {
	ifaces, err := netdev.List(c.ch, c.physicalOnly)
	if err != nil {
		c.fail("list interfaces", "", err)
	}
	for _, iface := range ifaces {
		c.collectInterface(out, iface)
	}

	bridges, err := bridge.List(c.ch)
	if err != nil {
		c.fail("list bridges", "", err)
	}
	for _, br := range bridges {
		c.collectBridge(out, br)
	}
	c.scrapeErrors.Collect(out)
}

func (c *Collector) fail(what, dev string, err error) {
	c.scrapeErrors.Inc()
	c.log.Warn("collection failed", "what", what, "dev", dev, "error", err)
}

func (c *Collector) collectInterface(out chan<- prometheus.Metric, iface *netdev.Interface) {
	name := iface.Name()

	st, ok, err := iface.Stats()
	switch {
	case err != nil:
		c.fail("stats", name, err)
	case ok:
		m := st.Map()
		for i, statName := range netdev.StatNames {
			out <- prometheus.MustNewConstMetric(c.stats[i], prometheus.CounterValue, float64(m[statName]), name)
		}
	}

	up, err := iface.IsUp()
	if err != nil {
		// The device may have gone away since listing.
		c.fail("flags", name, err)
		return
	}
	out <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, boolValue(up), name)

	if info, err := iface.LinkInfo(); err == nil {
		out <- prometheus.MustNewConstMetric(c.carrier, prometheus.GaugeValue, boolValue(info.Up), name)
		out <- prometheus.MustNewConstMetric(c.speed, prometheus.GaugeValue, float64(info.Speed), name)
	}

	mac, err := iface.MACString()
	if err != nil {
		c.fail("hwaddr", name, err)
		return
	}
	physical := "false"
	if iface.IsPhysical() {
		physical = "true"
	}
	out <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1, name, mac, physical)
}

func (c *Collector) collectBridge(out chan<- prometheus.Metric, br *bridge.Bridge) {
	name := br.Name()
	members, err := br.Members()
	if err != nil {
		c.fail("members", name, err)
		return
	}
	out <- prometheus.MustNewConstMetric(c.bridgeMembers, prometheus.GaugeValue, float64(len(members)), name)

	var local, learned float64
	for rec, err := range br.ForwardingTable() {
		if err != nil {
			c.fail("fdb", name, err)
			return
		}
		if rec.Local {
			local++
		} else {
			learned++
		}
	}
	out <- prometheus.MustNewConstMetric(c.fdbEntries, prometheus.GaugeValue, local, name, "local")
	out <- prometheus.MustNewConstMetric(c.fdbEntries, prometheus.GaugeValue, learned, name, "learned")
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
