//go:build linux

package cmd

import "github.com/vishvananda/netlink"

// linkKind asks rtnetlink for the link type (veth, bridge, tun, ...).
func linkKind(name string) string {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return ""
	}
	return link.Type()
}
