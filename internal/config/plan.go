package config

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"grimm.is/ifctl/internal/bridge"
	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/logging"
	"grimm.is/ifctl/internal/netdev"
	"grimm.is/ifctl/internal/tap"
	"grimm.is/ifctl/internal/vlan"
)

// Step actions.
const (
	ActionCreateTap       = "create-tap"
	ActionAddVLAN         = "add-vlan"
	ActionCreateBridge    = "create-bridge"
	ActionSetSTP          = "set-stp"
	ActionSetForwardDelay = "set-forward-delay"
	ActionRemoveMember    = "remove-member"
	ActionAddMember       = "add-member"
	ActionSetMAC          = "set-mac"
	ActionSetAddress      = "set-address"
	ActionUp              = "up"
	ActionDown            = "down"
)

// defaultForwardDelay is what the kernel gives a new bridge.
const defaultForwardDelay = 15 * time.Second

// Step is one kernel change made by Apply.
type Step struct {
	Action string `yaml:"action"`
	Target string `yaml:"target"`
	Detail string `yaml:"detail,omitempty"`

	run func() error
}

func (s Step) String() string {
	if s.Detail == "" {
		return s.Action + " " + s.Target
	}
	return s.Action + " " + s.Target + " (" + s.Detail + ")"
}

type planner struct {
	ch      *kernel.Channel
	steps   []Step
	created map[string]bool

	// released holds members already scheduled for removal from their
	// bridge.
	released map[string]bool
}

func (p *planner) add(action, target, detail string, run func() error) {
	p.steps = append(p.steps, Step{Action: action, Target: target, Detail: detail, run: run})
}

// exists reports whether name is present now or will be after the steps
// planned so far.
func (p *planner) exists(name string) bool {
	return p.created[name] || netdev.New(p.ch, name).Exists()
}

// isUp reports the admin state a device will have when the up/down steps
// are reached. Devices created by the plan start down.
func (p *planner) isUp(name string) (bool, error) {
	if p.created[name] {
		return false, nil
	}
	return netdev.New(p.ch, name).IsUp()
}

// Plan compares cfg with the live state behind ch and returns the ordered
// steps that converge it. Taps and VLANs come first so that bridges can
// enslave them; admin state changes come last. Nothing is removed except
// bridge members that cfg does not list.
func Plan(ch *kernel.Channel, cfg *Config) ([]Step, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &planner{ch: ch, created: make(map[string]bool), released: make(map[string]bool)}

	for _, t := range cfg.Taps {
		p.planTap(t)
	}
	for _, v := range cfg.VLANs {
		if err := p.planVLAN(v); err != nil {
			return nil, err
		}
	}
	for _, b := range cfg.Bridges {
		if err := p.planBridge(b); err != nil {
			return nil, err
		}
	}
	for _, i := range cfg.Interfaces {
		if err := p.planInterface(i); err != nil {
			return nil, err
		}
	}

	for _, b := range cfg.Bridges {
		if err := p.planAdminState(b.Name, b.Up); err != nil {
			return nil, err
		}
	}
	for _, t := range cfg.Taps {
		if err := p.planAdminState(t.Name, t.Up); err != nil {
			return nil, err
		}
	}
	for _, v := range cfg.VLANs {
		if err := p.planAdminState(v.Name(), v.Up); err != nil {
			return nil, err
		}
	}
	for _, i := range cfg.Interfaces {
		if err := p.planAdminState(i.Name, i.Up); err != nil {
			return nil, err
		}
	}
	return p.steps, nil
}

func (p *planner) planTap(t Tap) {
	if p.exists(t.Name) {
		return
	}
	ch, name := p.ch, t.Name
	p.add(ActionCreateTap, name, "persistent", func() error {
		tp, err := tap.Create(ch, tap.Options{Name: name})
		if err != nil {
			return err
		}
		if err := tp.Persist(); err != nil {
			_ = tp.Close()
			return err
		}
		return tp.Close()
	})
	p.created[name] = true
}

func (p *planner) planVLAN(v VLAN) error {
	name := v.Name()
	if p.exists(name) {
		return nil
	}
	if !p.exists(v.Parent) {
		return errors.Errorf(errors.KindNotFound, "vlan %d: parent %s not found", v.ID, v.Parent)
	}
	ch, parent, id := p.ch, v.Parent, v.ID
	p.add(ActionAddVLAN, name, fmt.Sprintf("parent %s id %d", parent, id), func() error {
		_, err := vlan.Add(ch, parent, id)
		return err
	})
	p.created[name] = true
	return nil
}

func (p *planner) planBridge(b Bridge) error {
	ch, name := p.ch, b.Name
	br := bridge.New(ch, name)

	var (
		stp     bool
		delay   = defaultForwardDelay
		members []string
	)
	switch {
	case p.created[name]:
		return errors.Errorf(errors.KindValidation, "bridge %s is also declared as another device", name)
	case !br.Exists():
		p.add(ActionCreateBridge, name, "", func() error {
			_, err := bridge.Create(ch, name)
			return err
		})
		p.created[name] = true
	default:
		if _, err := bridge.Find(ch, name); err != nil {
			if errors.IsKind(err, errors.KindNotFound) {
				return errors.Errorf(errors.KindValidation, "%s exists and is not a bridge", name)
			}
			return err
		}
		var err error
		if stp, err = br.SpanningTree(); err != nil {
			return err
		}
		if delay, err = br.ForwardDelay(); err != nil {
			return err
		}
		if members, err = br.Members(); err != nil {
			return err
		}
	}

	if b.STP != nil && *b.STP != stp {
		on := *b.STP
		p.add(ActionSetSTP, name, fmt.Sprintf("%t", on), func() error {
			return br.SetSpanningTree(on)
		})
	}
	if b.ForwardDelay != nil {
		want := time.Duration(*b.ForwardDelay) * time.Second
		if want != delay {
			p.add(ActionSetForwardDelay, name, want.String(), func() error {
				return br.SetForwardDelay(want)
			})
		}
	}
	if b.Members == nil {
		return nil
	}

	for _, m := range members {
		if slices.Contains(b.Members, m) || p.released[m] {
			continue
		}
		member := m
		p.add(ActionRemoveMember, name, member, func() error {
			return br.RemoveMember(bridge.ByName(member))
		})
		p.released[member] = true
	}
	for _, m := range b.Members {
		if slices.Contains(members, m) {
			continue
		}
		if !p.exists(m) {
			return errors.Errorf(errors.KindNotFound, "bridge %s: member %s not found", name, m)
		}
		member := m
		if !p.created[m] && !p.released[m] {
			owner, owned, err := bridge.FindOwner(ch, m)
			if err != nil {
				return err
			}
			if owned {
				p.add(ActionRemoveMember, owner.Name(), member, func() error {
					return owner.RemoveMember(bridge.ByName(member))
				})
				p.released[member] = true
			}
		}
		p.add(ActionAddMember, name, member, func() error {
			return br.AddMember(bridge.ByName(member))
		})
	}
	return nil
}

func (p *planner) planInterface(i Interface) error {
	if !p.exists(i.Name) {
		return errors.Errorf(errors.KindNotFound, "interface %s not found", i.Name)
	}
	iface := netdev.New(p.ch, i.Name)
	fresh := p.created[i.Name]

	if i.MAC != "" {
		want, err := parseMAC(i.MAC)
		if err != nil {
			return err
		}
		differs := fresh
		if !fresh {
			have, err := iface.MAC()
			if err != nil {
				return err
			}
			differs = !bytes.Equal(have, want)
		}
		if differs {
			p.add(ActionSetMAC, i.Name, want.String(), func() error {
				// Most drivers refuse a new address while the device is up.
				up, err := iface.IsUp()
				if err != nil {
					return err
				}
				if up {
					if err := iface.Down(); err != nil {
						return err
					}
				}
				if err := iface.SetMAC(want); err != nil {
					return err
				}
				if up {
					return iface.Up()
				}
				return nil
			})
		}
	}

	if i.Address != "" {
		want, err := parseAddress(i.Address)
		if err != nil {
			return err
		}
		differs := fresh
		if !fresh {
			have, err := iface.IP()
			if err != nil {
				return err
			}
			prefix, ok, err := iface.Netmask()
			if err != nil {
				return err
			}
			differs = have != want.Addr() || !ok || prefix != want.Bits()
		}
		if differs {
			p.add(ActionSetAddress, i.Name, want.String(), func() error {
				if err := iface.SetIP(want.Addr()); err != nil {
					return err
				}
				return iface.SetNetmask(want.Bits())
			})
		}
	}
	return nil
}

func (p *planner) planAdminState(name string, want *bool) error {
	if want == nil {
		return nil
	}
	up, err := p.isUp(name)
	if err != nil {
		return err
	}
	if up == *want {
		return nil
	}
	iface := netdev.New(p.ch, name)
	if *want {
		p.add(ActionUp, name, "", iface.Up)
	} else {
		p.add(ActionDown, name, "", iface.Down)
	}
	return nil
}

// Apply runs steps in order and stops at the first failure. The returned
// run id tags the log and audit records of this run.
func Apply(ctx context.Context, steps []Step) (string, error) {
	runID := uuid.New().String()
	log := logging.WithComponent("config").WithFields(map[string]any{"run": runID})
	log.Info("apply started", "steps", len(steps))

	for n, s := range steps {
		if err := ctx.Err(); err != nil {
			return runID, errors.Wrapf(err, errors.KindUnavailable, "apply interrupted before step %d", n+1)
		}
		log.Info("applying", "step", n+1, "action", s.Action, "target", s.Target, "detail", s.Detail)
		if err := s.run(); err != nil {
			log.Error("step failed", "step", n+1, "action", s.Action, "target", s.Target, "error", err)
			return runID, errors.Wrapf(err, errors.GetKind(err), "step %d (%s) failed", n+1, s)
		}
	}

	log.Info("apply finished", "steps", len(steps))
	logging.Audit("config.apply", runID, map[string]any{"steps": len(steps)})
	return runID, nil
}
