package cmd

import (
	"strconv"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/vlan"
)

const vlanUsage = "vlan add <parent> <vid> | vlan del <name> | vlan show <name>"

type vlanView struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
	VID    int    `yaml:"vid"`
}

// RunVLAN manages 802.1Q sub-interfaces.
func RunVLAN(e *Env, args []string) error {
	if len(args) == 0 {
		return errors.New(errors.KindValidation, "usage: "+vlanUsage)
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "add":
		ops, _, err := positional(args, 2, "vlan add <parent> <vid>")
		if err != nil {
			return err
		}
		vid, err := strconv.Atoi(ops[1])
		if err != nil {
			return errors.Wrapf(err, errors.KindValidation, "invalid vlan id %q", ops[1])
		}
		iface, err := vlan.Add(e.Ch, ops[0], vid)
		if err != nil {
			return err
		}
		e.printf("%s\n", iface.Name())
		return nil

	case "del":
		ops, _, err := positional(args, 1, "vlan del <name>")
		if err != nil {
			return err
		}
		return vlan.Delete(e.Ch, ops[0])

	case "show":
		ops, rest, err := positional(args, 1, "vlan show <name> [-o table|yaml]")
		if err != nil {
			return err
		}
		fs := newFlags("vlan show")
		format := fs.String("o", formatTable, "Output format: table or yaml")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		if err := checkFormat(*format); err != nil {
			return err
		}
		v := vlanView{Name: ops[0]}
		if v.VID, err = vlan.VID(e.Ch, v.Name); err != nil {
			return err
		}
		if v.Parent, err = vlan.RealDevice(e.Ch, v.Name); err != nil {
			return err
		}
		if *format == formatYAML {
			return writeYAML(e.Out, v)
		}
		e.printf("%s", renderFields([][2]string{{"name", v.Name}, {"parent", v.Parent}, {"vid", strconv.Itoa(v.VID)}}))
		return nil
	}
	return errors.Errorf(errors.KindValidation, "unknown vlan command %q; usage: %s", sub, vlanUsage)
}
