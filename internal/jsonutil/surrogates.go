package jsonutil

// SanitizeSurrogates removes unpaired UTF-16 surrogate code points from a
// string. Go strings are UTF-8 and cannot represent a lone surrogate inside
// a single valid rune, but streaming providers occasionally hand back text
// reassembled from raw UTF-16 chunks that was re-encoded as WTF-8/CESU-8 —
// three-byte sequences of the form 0xED 0xA0-0xAF 0x80-0xBF (high surrogate,
// U+D800-U+DBFF) or 0xED 0xB0-0xBF 0x80-0xBF (low surrogate, U+DC00-U+DFFF).
// A high surrogate immediately followed by a low surrogate forms a valid
// pair and is left untouched (it also would not round-trip through Go's own
// UTF-8 decoder in the first place, so regular emoji/astral text is never
// affected). Lone surrogates are dropped.
//
// Idempotent: running it twice yields the same result as running it once,
// since the second pass finds nothing left to remove.
func SanitizeSurrogates(s string) string {
	b := []byte(s)
	n := len(b)
	out := make([]byte, 0, n)

	isHighSeq := func(i int) bool {
		return i+2 < n && b[i] == 0xED && b[i+1] >= 0xA0 && b[i+1] <= 0xAF && b[i+2] >= 0x80 && b[i+2] <= 0xBF
	}
	isLowSeq := func(i int) bool {
		return i+2 < n && b[i] == 0xED && b[i+1] >= 0xB0 && b[i+1] <= 0xBF && b[i+2] >= 0x80 && b[i+2] <= 0xBF
	}

	i := 0
	for i < n {
		if isHighSeq(i) {
			if isLowSeq(i + 3) {
				// Valid surrogate pair: keep both sequences verbatim.
				out = append(out, b[i:i+6]...)
				i += 6
				continue
			}
			// Unpaired high surrogate: drop it.
			i += 3
			continue
		}
		if isLowSeq(i) {
			// Unpaired low surrogate (no preceding high, since we always
			// consume pairs together above): drop it.
			i += 3
			continue
		}
		out = append(out, b[i])
		i++
	}
	return string(out)
}
