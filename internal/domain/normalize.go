package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// NormalizeText prepares free-text fields coming from the upstream portal:
//   - repairs known encoding corruption (see RepairEncoding)
//   - trims leading/trailing whitespace
//   - compresses internal whitespace runs into a single space
func NormalizeText(text string) string {
	text = strings.TrimSpace(RepairEncoding(text))
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			b.WriteRune(' ')
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// RepairEncoding applies a fixed substitution table that undoes the portal's
// known corruption mode: UTF-8 encoded Cyrillic delivered as if the bytes
// were Windows-1251. Sequences not covered by the table pass through
// unchanged; this is best-effort, not a general decoder.
func RepairEncoding(text string) string {
	return mojibakeReplacer.Replace(text)
}

// repairAlphabet lists every character the substitution table covers.
const repairAlphabet = "АБВГДЕЖЗИЙКЛМНОПРСТУФХЦЧШЩЪЫЬЭЮЯЁ" +
	"абвгдежзийклмнопрстуфхцчшщъыьэюяё" +
	"№«»"

var mojibakeReplacer = newMojibakeReplacer()

// newMojibakeReplacer builds garbled -> correct pairs by running each
// character's UTF-8 bytes through the Windows-1251 decoding the portal
// mistakenly applies.
func newMojibakeReplacer() *strings.Replacer {
	pairs := make([]string, 0, len(repairAlphabet)*2)
	for _, r := range repairAlphabet {
		var garbled strings.Builder
		for _, b := range []byte(string(r)) {
			garbled.WriteRune(charmap.Windows1251.DecodeByte(b))
		}
		pairs = append(pairs, garbled.String(), string(r))
	}
	return strings.NewReplacer(pairs...)
}
