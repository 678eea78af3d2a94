package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// ednAPI keeps integer fields integral when round-tripping through the generic form.
var ednAPI = sonic.Config{UseNumber: true}.Froze()

// WriteEDN writes an EDN rendering of v.
//
// Values go through their JSON form first so json tags decide the field names; keys
// become kebab-case keywords (due_date -> :due-date). Only the EDN subset needed for
// command payloads is produced: maps, vectors, strings, numbers, booleans and nil.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	b, err := ednAPI.Marshal(v)
	if err != nil {
		return err
	}
	var x any
	if err := ednAPI.Unmarshal(b, &x); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := ednEncoder{pretty: pretty, indent: 2}
	enc.writeAny(&buf, x, 0)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednEncoder struct {
	pretty bool
	indent int
}

func (e ednEncoder) writeAny(buf *bytes.Buffer, v any, level int) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("nil")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		buf.WriteString(strconv.Quote(t))
	case json.Number:
		buf.WriteString(t.String())
	case float64:
		buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case []any:
		e.writeSeq(buf, len(t), level, func(i int) { e.writeAny(buf, t[i], level+1) })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		if len(keys) == 0 {
			buf.WriteByte('}')
			return
		}
		e.writeItems(buf, len(keys), level, func(i int) {
			buf.WriteString(ednKeyword(keys[i]))
			buf.WriteByte(' ')
			e.writeAny(buf, t[keys[i]], level+1)
		})
		buf.WriteByte('}')
	default:
		buf.WriteString(strconv.Quote(fmt.Sprintf("%v", v)))
	}
}

func (e ednEncoder) writeSeq(buf *bytes.Buffer, n, level int, item func(int)) {
	buf.WriteByte('[')
	if n > 0 {
		e.writeItems(buf, n, level, item)
	}
	buf.WriteByte(']')
}

// writeItems lays out n items, one per line when pretty.
func (e ednEncoder) writeItems(buf *bytes.Buffer, n, level int, item func(int)) {
	if e.pretty {
		buf.WriteByte('\n')
	}
	for i := 0; i < n; i++ {
		if e.pretty {
			buf.WriteString(strings.Repeat(" ", (level+1)*e.indent))
		}
		item(i)
		if i != n-1 {
			if e.pretty {
				buf.WriteByte('\n')
			} else {
				buf.WriteByte(' ')
			}
		}
	}
	if e.pretty {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat(" ", level*e.indent))
	}
}

func ednKeyword(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "_")
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	if s == "" {
		s = "_"
	}
	return ":" + s
}
