package parser

import "strings"

// splitLine tokenizes one physical line of the export.
//
// A doubled quote emits a literal quote, a single quote toggles quoting, and
// a comma outside quotes ends the field. Every field is trimmed. Quoted fields
// never span lines: the caller splits the text into lines first, so a newline
// inside a quoted cell breaks the row.
func splitLine(line string) []string {
	var (
		fields   []string
		buf      strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && i+1 < len(line) && line[i+1] == '"':
			buf.WriteByte('"')
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(buf.String()))
			buf.Reset()
		default:
			buf.WriteByte(c)
		}
	}

	return append(fields, strings.TrimSpace(buf.String()))
}

// splitHeader splits the header line on plain commas. Each title is trimmed
// and loses at most one leading and one trailing quote.
func splitHeader(line string) []string {
	parts := strings.Split(line, ",")
	headers := make([]string, len(parts))
	for i, p := range parts {
		h := strings.TrimSpace(p)
		h = strings.TrimPrefix(h, `"`)
		h = strings.TrimSuffix(h, `"`)
		headers[i] = h
	}
	return headers
}
