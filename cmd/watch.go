package cmd

import (
	"grimm.is/ifctl/internal/monitor"
)

// RunWatch prints link changes until interrupted.
func RunWatch(e *Env, args []string) error {
	fs := newFlags("watch")
	format := fs.String("o", formatTable, "Output format: table or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if err := e.requireHost("watch"); err != nil {
		return err
	}
	return watch(e, monitor.New(), *format)
}

func watch(e *Env, m *monitor.Monitor, format string) error {
	m.OnChange(func(ev monitor.Event) {
		if format == formatYAML {
			_ = writeYAML(e.Out, []monitor.Event{ev})
			return
		}
		e.printf("%s\n", describeEvent(ev))
	})
	if err := m.Start(e.Ctx); err != nil {
		return err
	}
	<-e.Ctx.Done()
	m.Stop()
	return nil
}

func describeEvent(ev monitor.Event) string {
	line := ev.Time.Format("15:04:05.000") + " " + string(ev.Type) + " " + ev.Name
	switch ev.Type {
	case monitor.TypeRename:
		line += " (was " + ev.OldName + ")"
	case monitor.TypeMaster:
		if ev.Master == 0 {
			line += " (released)"
		} else {
			line += Printer.Sprintf(" (master index %d)", ev.Master)
		}
	}
	if ev.Running {
		line += " " + upStyle.Render("running")
	}
	return line
}
