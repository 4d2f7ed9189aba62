package memhost

import (
	"context"

	"github.com/ajitpratap0/quack/pkg/host"
)

// Collector is a DestReceiver that keeps every row as Go values.
type Collector struct {
	Desc          *host.TupleDesc
	Rows          [][]interface{}
	StartupCalls  int
	ShutdownCalls int
}

// Startup implements host.DestReceiver.
func (c *Collector) Startup(ctx context.Context, op host.CmdType, desc *host.TupleDesc) error {
	c.StartupCalls++
	c.Desc = desc
	return nil
}

// ReceiveSlot implements host.DestReceiver.
func (c *Collector) ReceiveSlot(ctx context.Context, slot *host.TupleSlot) error {
	values, err := slot.GoValues()
	if err != nil {
		return err
	}
	c.Rows = append(c.Rows, values)
	return nil
}

// Shutdown implements host.DestReceiver.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.ShutdownCalls++
	return nil
}
