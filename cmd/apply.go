package cmd

import (
	"grimm.is/ifctl/internal/config"
	"grimm.is/ifctl/internal/errors"
)

// RunApply converges the host towards a host file, or shows what would
// change.
func RunApply(e *Env, args []string) error {
	fs := newFlags("apply")
	path := fs.String("f", config.DefaultPath(), "Host file")
	dryRun := fs.Bool("dry-run", false, "Print the steps without running them")
	diff := fs.Bool("diff", false, "Print a diff between live and desired state")
	export := fs.Bool("export", false, "Print the live state as a host file and exit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *export {
		out, err := config.Export(e.Ch)
		if err != nil {
			return err
		}
		_, err = e.Out.Write(out)
		return errors.Wrap(err, errors.KindInternal, "failed to write export")
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}

	if *diff {
		text, err := config.Diff(e.Ch, cfg)
		if err != nil {
			return err
		}
		if text == "" {
			e.printf("%s\n", mutedText.Render("no changes"))
			return nil
		}
		e.printf("%s", text)
		return nil
	}

	steps, err := config.Plan(e.Ch, cfg)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		e.printf("%s\n", mutedText.Render("nothing to do"))
		return nil
	}
	for n, s := range steps {
		e.printf("%2d. %s\n", n+1, s)
	}
	if *dryRun {
		return nil
	}

	runID, err := config.Apply(e.Ctx, steps)
	if err != nil {
		return err
	}
	e.printf("applied %d steps (run %s)\n", len(steps), runID)
	return nil
}
