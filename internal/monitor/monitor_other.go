//go:build !linux

package monitor

import (
	"context"

	"grimm.is/ifctl/internal/errors"
)

func kernelSubscriber(context.Context, chan<- LinkState, func(LinkState)) error {
	return errors.New(errors.KindUnsupported, "link monitoring requires linux")
}
