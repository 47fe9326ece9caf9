package cmd

import (
	"strconv"
	"strings"
	"time"

	"grimm.is/ifctl/internal/bridge"
	"grimm.is/ifctl/internal/errors"
)

const bridgeUsage = "bridge create|delete|add|del|list|stp|fd|fdb ..."

type bridgeView struct {
	Name         string   `yaml:"name"`
	Up           bool     `yaml:"up"`
	STP          bool     `yaml:"stp"`
	ForwardDelay string   `yaml:"forward_delay"`
	Members      []string `yaml:"members"`
}

type fdbView struct {
	MAC    string `yaml:"mac"`
	Port   uint16 `yaml:"port"`
	Member string `yaml:"member"`
	Local  bool   `yaml:"local"`
	Age    string `yaml:"age"`
}

// RunBridge manages bridges.
func RunBridge(e *Env, args []string) error {
	if len(args) == 0 {
		return errors.New(errors.KindValidation, "usage: "+bridgeUsage)
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "create":
		ops, _, err := positional(args, 1, "bridge create <br>")
		if err != nil {
			return err
		}
		_, err = bridge.Create(e.Ch, ops[0])
		return err

	case "delete":
		ops, _, err := positional(args, 1, "bridge delete <br>")
		if err != nil {
			return err
		}
		br, err := bridge.Find(e.Ch, ops[0])
		if err != nil {
			return err
		}
		return br.Delete()

	case "add", "del":
		ops, _, err := positional(args, 2, "bridge "+sub+" <br> <if>")
		if err != nil {
			return err
		}
		br, err := bridge.Find(e.Ch, ops[0])
		if err != nil {
			return err
		}
		if sub == "add" {
			return br.AddMember(bridge.ByName(ops[1]))
		}
		return br.RemoveMember(bridge.ByName(ops[1]))

	case "list":
		return bridgeList(e, args)

	case "stp":
		ops, _, err := positional(args, 2, "bridge stp <br> on|off")
		if err != nil {
			return err
		}
		on, err := parseSwitch(ops[1])
		if err != nil {
			return err
		}
		br, err := bridge.Find(e.Ch, ops[0])
		if err != nil {
			return err
		}
		return br.SetSpanningTree(on)

	case "fd":
		ops, _, err := positional(args, 2, "bridge fd <br> <seconds>")
		if err != nil {
			return err
		}
		secs, err := strconv.ParseFloat(ops[1], 64)
		if err != nil {
			return errors.Wrapf(err, errors.KindValidation, "invalid forward delay %q", ops[1])
		}
		br, err := bridge.Find(e.Ch, ops[0])
		if err != nil {
			return err
		}
		return br.SetForwardDelay(time.Duration(secs * float64(time.Second)))

	case "fdb":
		return bridgeFDB(e, args)
	}
	return errors.Errorf(errors.KindValidation, "unknown bridge command %q; usage: %s", sub, bridgeUsage)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	}
	return false, errors.Errorf(errors.KindValidation, "expected on or off, got %q", s)
}

func bridgeList(e *Env, args []string) error {
	fs := newFlags("bridge list")
	format := fs.String("o", formatTable, "Output format: table or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	bridges, err := bridge.List(e.Ch)
	if err != nil {
		return err
	}
	views := make([]bridgeView, 0, len(bridges))
	for _, br := range bridges {
		v := bridgeView{Name: br.Name()}
		if v.Up, err = br.IsUp(); err != nil {
			return err
		}
		if v.STP, err = br.SpanningTree(); err != nil {
			return err
		}
		d, err := br.ForwardDelay()
		if err != nil {
			return err
		}
		v.ForwardDelay = d.String()
		if v.Members, err = br.Members(); err != nil {
			return err
		}
		views = append(views, v)
	}

	if *format == formatYAML {
		return writeYAML(e.Out, views)
	}
	rows := make([][]string, len(views))
	for n, v := range views {
		rows[n] = []string{v.Name, state(v.Up), strconv.FormatBool(v.STP), v.ForwardDelay, orDash(strings.Join(v.Members, ","))}
	}
	e.printf("%s", renderTable([]string{"BRIDGE", "STATE", "STP", "FORWARD DELAY", "MEMBERS"}, rows))
	return nil
}

func bridgeFDB(e *Env, args []string) error {
	ops, rest, err := positional(args, 1, "bridge fdb <br> [-o table|yaml]")
	if err != nil {
		return err
	}
	fs := newFlags("bridge fdb")
	format := fs.String("o", formatTable, "Output format: table or yaml")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	br, err := bridge.Find(e.Ch, ops[0])
	if err != nil {
		return err
	}
	var views []fdbView
	for rec, err := range br.ForwardingTable() {
		if err != nil {
			return err
		}
		views = append(views, fdbView{
			MAC:    rec.MAC.String(),
			Port:   rec.Port,
			Member: rec.Member,
			Local:  rec.Local,
			Age:    rec.Age.Round(10 * time.Millisecond).String(),
		})
	}

	if *format == formatYAML {
		return writeYAML(e.Out, views)
	}
	rows := make([][]string, len(views))
	for n, v := range views {
		rows[n] = []string{v.MAC, strconv.Itoa(int(v.Port)), v.Member, strconv.FormatBool(v.Local), v.Age}
	}
	e.printf("%s", renderTable([]string{"MAC", "PORT", "MEMBER", "LOCAL", "AGE"}, rows))
	return nil
}
