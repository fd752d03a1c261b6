package contents

import "strings"

const upperhex = "0123456789ABCDEF"

// escapeComponent percent-encodes every UTF-8 byte except
// A-Z a-z 0-9 - _ . ! ~ * ' ( ).
func escapeComponent(s string) string {
	return escape(s, "")
}

// escapeURI additionally keeps the URI delimiters ; , / ? : @ & = + $ #.
func escapeURI(s string) string {
	return escape(s, ";,/?:@&=+$#")
}

func escape(s, keep string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) || (c < 0x80 && strings.IndexByte(keep, c) >= 0) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
