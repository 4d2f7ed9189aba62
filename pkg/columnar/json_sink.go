package columnar

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/quack/pkg/host"
)

// JSONSink writes one JSON object per row.
type JSONSink struct {
	enc  *json.Encoder
	desc *host.TupleDesc
	row  map[string]interface{}
	rows int64
}

// NewJSONSink creates a sink writing JSON lines to w.
func NewJSONSink(w io.Writer) *JSONSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONSink{enc: enc}
}

// Startup implements host.DestReceiver.
func (s *JSONSink) Startup(ctx context.Context, op host.CmdType, desc *host.TupleDesc) error {
	s.desc = desc
	s.row = make(map[string]interface{}, desc.NumAttrs())
	return nil
}

// ReceiveSlot implements host.DestReceiver.
func (s *JSONSink) ReceiveSlot(ctx context.Context, slot *host.TupleSlot) error {
	values, err := slot.GoValues()
	if err != nil {
		return err
	}
	for i, attr := range s.desc.Attrs {
		s.row[attr.Name] = jsonValue(attr.TypeOID, values[i])
	}
	s.rows++
	return s.enc.Encode(s.row)
}

// Shutdown implements host.DestReceiver.
func (s *JSONSink) Shutdown(ctx context.Context) error { return nil }

// Rows returns the number of rows written.
func (s *JSONSink) Rows() int64 { return s.rows }

func jsonValue(oid host.OID, v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		if oid == host.DateOID {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02T15:04:05.999999")
	case host.DateADT, host.Timestamp:
		if t == host.DateNoBegin || t == host.TimestampNoBegin {
			return "-infinity"
		}
		return "infinity"
	}
	return v
}
