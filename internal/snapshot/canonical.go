package snapshot

import (
	"strconv"
	"strings"
)

// EncodeCanonical emits a canonical byte sequence for v: object keys sorted
// lexicographically, integers and doubles distinguished in their textual
// form, no trailing whitespace. Determinism (hashing, cache comparison across
// process restarts) depends entirely on this function being stable.
func EncodeCanonical(v Value) []byte {
	var sb strings.Builder
	writeCanonical(&sb, v)
	return []byte(sb.String())
}

func writeCanonical(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindDouble:
		sb.WriteString(formatCanonicalDouble(v.f))
	case KindString:
		writeCanonicalString(sb, v.s)
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		keys := v.Keys()
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonicalString(sb, k)
			sb.WriteByte(':')
			writeCanonical(sb, v.obj[k])
		}
		sb.WriteByte('}')
	}
}

// formatCanonicalDouble formats f so its textual form is always distinguishable
// from an integer encoding: it carries a '.' or an 'e' exponent marker even
// when the value is integral (e.g. 42.0 rather than 42).
func formatCanonicalDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eE") || strings.Contains(s, "Inf") || strings.Contains(s, "NaN") {
		return s
	}
	return s + ".0"
}

func writeCanonicalString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				sb.WriteString(`\u`)
				const hex = "0123456789abcdef"
				sb.WriteByte(hex[(r>>12)&0xf])
				sb.WriteByte(hex[(r>>8)&0xf])
				sb.WriteByte(hex[(r>>4)&0xf])
				sb.WriteByte(hex[r&0xf])
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}
