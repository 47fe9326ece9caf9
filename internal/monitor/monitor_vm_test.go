//go:build linux

package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/ifctl/internal/testutil"
)

func TestMonitor_Integration(t *testing.T) {
	testutil.RequireVM(t)

	m := New()
	events := make(chan Event, 16)
	m.OnChange(func(e Event) {
		if e.Name == "ifctl-mon0" {
			events <- e
		}
	})
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	link := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: "ifctl-mon0"}}
	require.NoError(t, netlink.LinkAdd(link))
	defer netlink.LinkDel(link)

	next := func() Event {
		select {
		case e := <-events:
			return e
		case <-time.After(3 * time.Second):
			t.Fatal("no event")
		}
		return Event{}
	}
	require.Equal(t, TypeAdd, next().Type)

	require.NoError(t, netlink.LinkSetUp(link))
	for e := next(); e.Type != TypeUp; e = next() {
	}
}
