package format

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WriteEDN writes maps as keyword maps, slices as vectors and everything else
// as scalars. Keys come from json tags.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	e := ednWriter{buf: &buf, pretty: pretty}
	e.value(x, 0)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednWriter struct {
	buf    *bytes.Buffer
	pretty bool
}

func (e ednWriter) value(v any, level int) {
	switch t := v.(type) {
	case nil:
		e.buf.WriteString("nil")
	case bool:
		e.buf.WriteString(strconv.FormatBool(t))
	case string:
		e.buf.WriteString(strconv.Quote(t))
	case float64:
		if t == float64(int64(t)) {
			e.buf.WriteString(strconv.FormatInt(int64(t), 10))
			return
		}
		e.buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case []any:
		e.open('[', len(t) == 0)
		for i, it := range t {
			e.sep(i, level+1)
			e.value(it, level+1)
		}
		e.close(']', len(t) == 0, level)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.open('{', len(keys) == 0)
		for i, k := range keys {
			e.sep(i, level+1)
			e.buf.WriteString(":" + keyword(k) + " ")
			e.value(t[k], level+1)
		}
		e.close('}', len(keys) == 0, level)
	default:
		e.buf.WriteString(strconv.Quote(fmt.Sprint(v)))
	}
}

func (e ednWriter) open(c byte, empty bool) {
	e.buf.WriteByte(c)
	if e.pretty && !empty {
		e.buf.WriteByte('\n')
	}
}

func (e ednWriter) sep(i, level int) {
	if i > 0 {
		if e.pretty {
			e.buf.WriteByte('\n')
		} else {
			e.buf.WriteByte(' ')
		}
	}
	if e.pretty {
		e.buf.WriteString(strings.Repeat("  ", level))
	}
}

func (e ednWriter) close(c byte, empty bool, level int) {
	if e.pretty && !empty {
		e.buf.WriteByte('\n')
		e.buf.WriteString(strings.Repeat("  ", level))
	}
	e.buf.WriteByte(c)
}

// keyword turns a json key into an EDN keyword: camelCase and snake_case
// become kebab-case.
func keyword(s string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r == '_' || r == ' ':
			b.WriteByte('-')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
