package engine

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites modeling script source into something zygomys
// accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot shadow user variables.
//  2. kebab-case identifiers become snake_case (linear-pattern ->
//     linear_pattern); zygomys reads a bare hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	src := []byte(source)
	out := make([]byte, 0, len(src)+len(src)/4)
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"':
			j := quotedEnd(src, i, '"', true)
			out = append(out, src[i:j]...)
			i = j
		case c == '`':
			j := quotedEnd(src, i, '`', false)
			out = append(out, src[i:j]...)
			i = j
		case c == ';':
			for i < len(src) && src[i] == ';' {
				i++
			}
			out = append(out, '/', '/')
			for i < len(src) && src[i] != '\n' {
				out = append(out, src[i])
				i++
			}
		case c == ':' && i+1 < len(src) && src[i+1] == '=':
			out = append(out, ':', '=')
			i += 2
		case c == ':' && i+1 < len(src) && isLetter(src[i+1]):
			j := i + 1
			for j < len(src) && isKWChar(src[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, src[i+1:j]...)
			out = append(out, '"')
			i = j
		case c == '-' && i > 0 && i+1 < len(src) && isIdentChar(src[i-1]) && isLetter(src[i+1]):
			out = append(out, '_')
			i++
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// quotedEnd returns the index just past the literal opened at src[start].
// An unterminated literal runs to the end of the input.
func quotedEnd(src []byte, start int, quote byte, escapes bool) int {
	i := start + 1
	for i < len(src) && src[i] != quote {
		if escapes && src[i] == '\\' && i+1 < len(src) {
			i++
		}
		i++
	}
	if i < len(src) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}
