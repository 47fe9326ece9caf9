//go:build linux

package monitor

import (
	"context"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/logging"
)

func kernelSubscriber(ctx context.Context, out chan<- LinkState, seed func(LinkState)) error {
	updates := make(chan netlink.LinkUpdate)
	if err := netlink.LinkSubscribeWithOptions(updates, ctx.Done(), netlink.LinkSubscribeOptions{
		ErrorCallback: func(err error) {
			logging.WithComponent("monitor").Warn("link subscription failed", "error", err)
		},
	}); err != nil {
		return errors.Wrap(err, errors.KindChannel, "failed to subscribe to link updates")
	}

	links, err := netlink.LinkList()
	if err != nil {
		return errors.Wrap(err, errors.KindChannel, "failed to list links")
	}
	for _, l := range links {
		seed(fromAttrs(l.Attrs(), false))
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				s := fromAttrs(u.Link.Attrs(), u.Header.Type == unix.RTM_DELLINK)
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return nil
}

func fromAttrs(a *netlink.LinkAttrs, deleted bool) LinkState {
	return LinkState{
		Index:   a.Index,
		Name:    a.Name,
		Up:      a.Flags&net.FlagUp != 0,
		Running: a.RawFlags&unix.IFF_RUNNING != 0,
		MAC:     a.HardwareAddr.String(),
		Master:  a.MasterIndex,
		Deleted: deleted,
	}
}
