package cmd

import (
	"grimm.is/ifctl/internal/route"
)

type routeView struct {
	Iface   string `yaml:"iface"`
	Gateway string `yaml:"gateway,omitempty"`
	Metric  int    `yaml:"metric"`
}

// RunRoute prints the default route.
func RunRoute(e *Env, args []string) error {
	fs := newFlags("route")
	format := fs.String("o", formatTable, "Output format: table or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	r, ok, err := route.Default(e.Ch.Tables())
	if err != nil {
		return err
	}
	if !ok {
		e.printf("no default route\n")
		return nil
	}
	v := routeView{Iface: r.Iface, Metric: r.Metric}
	if r.HasGateway() {
		v.Gateway = r.Gateway.String()
	}
	if *format == formatYAML {
		return writeYAML(e.Out, v)
	}
	if v.Gateway != "" {
		e.printf("default via %s dev %s metric %d\n", v.Gateway, v.Iface, v.Metric)
	} else {
		e.printf("default dev %s metric %d\n", v.Iface, v.Metric)
	}
	return nil
}
