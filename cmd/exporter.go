package cmd

import (
	"strings"

	"grimm.is/ifctl/internal/health"
	"grimm.is/ifctl/internal/logging"
	"grimm.is/ifctl/internal/metrics"
)

// RunExporter serves device metrics and health checks until interrupted.
func RunExporter(e *Env, args []string) error {
	fs := newFlags("exporter")
	listen := fs.String("listen", ":9101", "Address to serve /metrics and /healthz on")
	physical := fs.Bool("physical", false, "Only export physical interfaces")
	require := fs.String("require", "", "Comma-separated devices that must be up for /healthz to pass")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var required []string
	for _, name := range strings.Split(*require, ",") {
		if name = strings.TrimSpace(name); name != "" {
			required = append(required, name)
		}
	}
	logging.WithComponent("exporter").Info("serving metrics", "addr", *listen, "physical_only", *physical, "required", required)
	return metrics.Serve(e.Ctx, *listen, metrics.NewRegistry(e.Ch, *physical), health.NewDeviceChecker(e.Ch, required))
}
