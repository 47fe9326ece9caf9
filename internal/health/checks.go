package health

import (
	"context"
	"fmt"

	"grimm.is/ifctl/internal/clock"
	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/netdev"
)

// NewDeviceChecker returns a checker for the channel, device discovery and
// the link state of each required device.
func NewDeviceChecker(ch *kernel.Channel, required []string) *Checker {
	c := NewChecker()
	c.Register("channel", ChannelCheck(ch))
	c.Register("interfaces", InterfacesCheck(ch))
	for _, name := range required {
		c.Register("link:"+name, LinkCheck(ch, name))
	}
	return c
}

func result(start Check, status Status, format string, args ...any) Check {
	start.Status = status
	start.Message = fmt.Sprintf(format, args...)
	start.Duration = clock.Since(start.LastChecked)
	return start
}

// ChannelCheck is unhealthy once the channel has been closed.
func ChannelCheck(ch *kernel.Channel) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{LastChecked: clock.Now()}
		if err := ch.Check(); err != nil {
			return result(check, StatusUnhealthy, "%v", err)
		}
		return result(check, StatusHealthy, "control socket open")
	}
}

// InterfacesCheck verifies that devices can be enumerated and that at least
// one physical device exists.
func InterfacesCheck(ch *kernel.Channel) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{LastChecked: clock.Now()}
		all, err := netdev.List(ch, false)
		if err != nil {
			return result(check, StatusUnhealthy, "failed to list interfaces: %v", err)
		}
		physical := 0
		for _, iface := range all {
			if iface.IsPhysical() {
				physical++
			}
		}
		if physical == 0 {
			return result(check, StatusDegraded, "%d interfaces, none physical", len(all))
		}
		return result(check, StatusHealthy, "%d interfaces, %d physical", len(all), physical)
	}
}

// LinkCheck is healthy when name is up with carrier, degraded when it is up
// without carrier and unhealthy when it is down or missing.
func LinkCheck(ch *kernel.Channel, name string) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{LastChecked: clock.Now()}
		iface, err := netdev.Find(ch, name)
		if err != nil {
			if errors.IsKind(err, errors.KindNotFound) {
				return result(check, StatusUnhealthy, "%s not found", name)
			}
			return result(check, StatusUnhealthy, "%v", err)
		}
		up, err := iface.IsUp()
		if err != nil {
			return result(check, StatusUnhealthy, "%v", err)
		}
		if !up {
			return result(check, StatusUnhealthy, "%s is down", name)
		}
		info, err := iface.LinkInfo()
		if err != nil {
			return result(check, StatusDegraded, "link state unknown: %v", err)
		}
		if !info.Up {
			return result(check, StatusDegraded, "%s has no carrier", name)
		}
		return result(check, StatusHealthy, "%s up", name)
	}
}
