package cmd

import (
	"time"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/frame"
	"grimm.is/ifctl/internal/tap"
)

const tapUsage = "tap create [-name] [-persist] | tap delete <name> | tap read <name> [-timeout] [-count]"

// RunTap manages tap devices.
func RunTap(e *Env, args []string) error {
	if len(args) == 0 {
		return errors.New(errors.KindValidation, "usage: "+tapUsage)
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "create":
		return tapCreate(e, args)
	case "delete":
		ops, _, err := positional(args, 1, "tap delete <name>")
		if err != nil {
			return err
		}
		return tap.Delete(e.Ch, ops[0])
	case "read":
		return tapRead(e, args)
	}
	return errors.Errorf(errors.KindValidation, "unknown tap command %q; usage: %s", sub, tapUsage)
}

func tapCreate(e *Env, args []string) error {
	fs := newFlags("tap create")
	name := fs.String("name", "", "Device name; the kernel picks tapN when empty")
	persist := fs.Bool("persist", false, "Keep the device after ifctl exits")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	t, err := tap.Create(e.Ch, tap.Options{Name: *name})
	if err != nil {
		return err
	}
	if *persist {
		if err := t.Persist(); err != nil {
			_ = t.Close()
			return err
		}
		e.printf("%s\n", t.Name())
		return t.Close()
	}

	// A transient tap lives as long as its descriptor.
	e.printf("%s (held until interrupted)\n", t.Name())
	<-e.Ctx.Done()
	return t.Close()
}

func tapRead(e *Env, args []string) error {
	ops, rest, err := positional(args, 1, "tap read <name> [-timeout 5s] [-count n]")
	if err != nil {
		return err
	}
	fs := newFlags("tap read")
	timeout := fs.Duration("timeout", 5*time.Second, "Give up after this long without a frame")
	count := fs.Int("count", 0, "Stop after this many frames; 0 reads until the timeout")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}

	t, err := tap.Create(e.Ch, tap.Options{Name: ops[0]})
	if err != nil {
		return err
	}
	defer t.Close()

	buf := make([]byte, 65536)
	for seen := 0; *count == 0 || seen < *count; {
		ready, err := t.WaitReadable(e.Ctx, *timeout)
		if err != nil {
			return err
		}
		if !ready {
			if seen == 0 {
				return errors.Errorf(errors.KindUnavailable, "no frame on %s within %s", t.Name(), *timeout)
			}
			return nil
		}
		n, err := t.Read(buf)
		if errors.Is(err, tap.ErrWouldBlock) {
			continue
		}
		if err != nil {
			return err
		}
		seen++
		e.printf("%s\n", frame.Describe(buf[:n]))
	}
	return nil
}
