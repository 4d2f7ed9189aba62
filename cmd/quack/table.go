package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ajitpratap0/quack/pkg/host"
)

// tableSink prints rows as aligned text columns.
type tableSink struct {
	tw   *tabwriter.Writer
	desc *host.TupleDesc
	rows int
}

func newTableSink(w io.Writer) *tableSink {
	return &tableSink{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
}

func (s *tableSink) Startup(ctx context.Context, op host.CmdType, desc *host.TupleDesc) error {
	s.desc = desc
	names := make([]string, desc.NumAttrs())
	rules := make([]string, desc.NumAttrs())
	for i, attr := range desc.Attrs {
		names[i] = attr.Name
		rules[i] = strings.Repeat("-", len(attr.Name))
	}
	if _, err := fmt.Fprintln(s.tw, strings.Join(names, "\t")); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.tw, strings.Join(rules, "\t"))
	return err
}

func (s *tableSink) ReceiveSlot(ctx context.Context, slot *host.TupleSlot) error {
	values, err := slot.GoValues()
	if err != nil {
		return err
	}
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = formatCell(s.desc.Attrs[i].TypeOID, v)
	}
	s.rows++
	_, err = fmt.Fprintln(s.tw, strings.Join(cells, "\t"))
	return err
}

func (s *tableSink) Shutdown(ctx context.Context) error {
	suffix := "s"
	if s.rows == 1 {
		suffix = ""
	}
	if _, err := fmt.Fprintf(s.tw, "(%d row%s)\n", s.rows, suffix); err != nil {
		return err
	}
	return s.tw.Flush()
}

func formatCell(oid host.OID, v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if oid == host.DateOID {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05.999999")
	case host.DateADT, host.Timestamp:
		if t == host.DateNoBegin || t == host.TimestampNoBegin {
			return "-infinity"
		}
		return "infinity"
	default:
		return fmt.Sprint(t)
	}
}
