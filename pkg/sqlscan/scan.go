// Package sqlscan provides quote and parenthesis aware cursor primitives over SQL text.
//
// Every operation treats single-quoted and double-quoted regions as opaque: commas,
// parentheses, semicolons and keywords inside an open quote are invisible. A doubled
// quote character inside its own region ('' or "") is an escaped literal quote and
// does not close the region.
//
// The scanner works on bytes. All structural characters are ASCII, and UTF-8
// continuation bytes never collide with ASCII, so multi-byte text passes through
// untouched.
package sqlscan

import "strings"

// NotFound is returned by the Find functions when nothing matches.
const NotFound = -1

// state tracks the quote and parenthesis context while walking text.
type state struct {
	quote byte // 0, '\'' or '"'
	depth int
}

// step consumes the byte at i and returns the index of the next byte to examine.
// structural reports whether the byte at i sits outside every quoted region and is
// not itself a quote delimiter.
func (s *state) step(text string, i int) (next int, structural bool) {
	ch := text[i]
	if s.quote != 0 {
		if ch == s.quote {
			if i+1 < len(text) && text[i+1] == s.quote {
				return i + 2, false
			}
			s.quote = 0
		}
		return i + 1, false
	}
	if ch == '\'' || ch == '"' {
		s.quote = ch
		return i + 1, false
	}
	return i + 1, true
}

// FindCharOutsideQuotes returns the first offset >= start where ch appears outside
// any quoted region, or NotFound.
func FindCharOutsideQuotes(text string, ch byte, start int) int {
	if start < 0 {
		start = 0
	}
	var st state
	for i := start; i < len(text); {
		next, structural := st.step(text, i)
		if structural && text[i] == ch {
			return i
		}
		i = next
	}
	return NotFound
}

// FindMatchingParen returns the offset of the ')' balancing the '(' at open,
// or NotFound when open is not a '(' or the parentheses never balance.
func FindMatchingParen(text string, open int) int {
	if open < 0 || open >= len(text) || text[open] != '(' {
		return NotFound
	}
	var st state
	for i := open; i < len(text); {
		next, structural := st.step(text, i)
		if structural {
			switch text[i] {
			case '(':
				st.depth++
			case ')':
				st.depth--
				if st.depth == 0 {
					return i
				}
			}
		}
		i = next
	}
	return NotFound
}

// FindTopLevelKeyword returns the offset of the first case-insensitive whole-word
// occurrence of keyword at paren depth 0 outside quotes, starting at start.
// Multi-word keywords such as "UNION ALL" match across any run of whitespace.
func FindTopLevelKeyword(text, keyword string, start int) int {
	pos, _ := findKeyword(text, keyword, start, true)
	return pos
}

// FindKeywordOutsideQuotes is FindTopLevelKeyword without the paren depth
// restriction. It returns the match offset and the offset just past it.
func FindKeywordOutsideQuotes(text, keyword string, start int) (int, int) {
	return findKeyword(text, keyword, start, false)
}

// FindStatementEnd returns the offset of the first ';' at or after start that is
// outside quotes and not nested inside a parenthesis opened at or after start.
func FindStatementEnd(text string, start int) int {
	if start < 0 {
		start = 0
	}
	var st state
	for i := start; i < len(text); {
		next, structural := st.step(text, i)
		if structural {
			switch text[i] {
			case '(':
				st.depth++
			case ')':
				st.depth--
			case ';':
				if st.depth <= 0 {
					return i
				}
			}
		}
		i = next
	}
	return NotFound
}

// FindLineComment returns the offset where a line comment starts in line: a "--"
// outside quotes, or a "#" preceded only by whitespace. NotFound when the line has
// no comment.
func FindLineComment(line string) int {
	var st state
	for i := 0; i < len(line); {
		next, structural := st.step(line, i)
		if structural {
			switch line[i] {
			case '-':
				if i+1 < len(line) && line[i+1] == '-' {
					return i
				}
			case '#':
				if strings.TrimSpace(line[:i]) == "" {
					return i
				}
			}
		}
		i = next
	}
	return NotFound
}

// findKeyword locates keyword outside quotes, at paren depth 0 when topLevel is set.
func findKeyword(text, keyword string, start int, topLevel bool) (int, int) {
	words := strings.Fields(keyword)
	if len(words) == 0 {
		return NotFound, NotFound
	}
	if start < 0 {
		start = 0
	}
	var st state
	for i := start; i < len(text); {
		next, structural := st.step(text, i)
		if structural {
			switch text[i] {
			case '(':
				st.depth++
			case ')':
				if st.depth > 0 {
					st.depth--
				}
			default:
				if st.depth == 0 || !topLevel {
					if end, ok := matchWordsAt(text, i, words); ok {
						return i, end
					}
				}
			}
		}
		i = next
	}
	return NotFound, NotFound
}

// SplitTopLevelCommas splits text at commas at paren depth 0 outside quotes.
// Segments are trimmed and empty segments are dropped.
func SplitTopLevelCommas(text string) []string {
	var parts []string
	var st state
	segStart := 0
	for i := 0; i < len(text); {
		next, structural := st.step(text, i)
		if structural {
			switch text[i] {
			case '(':
				st.depth++
			case ')':
				if st.depth > 0 {
					st.depth--
				}
			case ',':
				if st.depth == 0 {
					parts = appendTrimmed(parts, text[segStart:i])
					segStart = i + 1
				}
			}
		}
		i = next
	}
	return appendTrimmed(parts, text[segStart:])
}

// SplitTopLevelKeywordAll splits text around every occurrence of keyword at paren
// depth 0 outside quotes. Segments are trimmed and empty segments are dropped.
func SplitTopLevelKeywordAll(text, keyword string) []string {
	var parts []string
	segStart := 0
	for {
		pos, end := findKeyword(text, keyword, segStart, true)
		if pos == NotFound {
			break
		}
		parts = appendTrimmed(parts, text[segStart:pos])
		segStart = end
	}
	return appendTrimmed(parts, text[segStart:])
}

// HasKeywordPrefix reports whether text, after leading whitespace, starts with
// keyword as a whole word. Matching is case-insensitive.
func HasKeywordPrefix(text, keyword string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	_, ok := matchWordsAt(trimmed, 0, strings.Fields(keyword))
	return ok
}

// MatchKeywordAt reports whether keyword matches text at offset i as a whole word,
// returning the offset just past the match. Quote and depth state are not checked.
func MatchKeywordAt(text string, i int, keyword string) (int, bool) {
	return matchWordsAt(text, i, strings.Fields(keyword))
}

// matchWordsAt matches words separated by whitespace at offset i with word
// boundaries on both ends of the whole match.
func matchWordsAt(text string, i int, words []string) (int, bool) {
	if len(words) == 0 || i < 0 || i >= len(text) {
		return 0, false
	}
	if i > 0 && IsWordByte(text[i-1]) {
		return 0, false
	}
	pos := i
	for w, word := range words {
		if w > 0 {
			ws := pos
			for pos < len(text) && isSpace(text[pos]) {
				pos++
			}
			if pos == ws {
				return 0, false
			}
		}
		if len(text)-pos < len(word) || !equalFoldASCII(text[pos:pos+len(word)], word) {
			return 0, false
		}
		pos += len(word)
	}
	if pos < len(text) && IsWordByte(text[pos]) {
		return 0, false
	}
	return pos, true
}

// IsWordByte reports whether b can be part of an identifier. Bytes of multi-byte
// UTF-8 sequences count as word bytes, so CJK identifiers are never split.
func IsWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9') ||
		b >= 0x80
}

// equalFoldASCII compares a and b ignoring ASCII case only. Unicode folding would
// let non-ASCII letters such as the Kelvin sign match keyword letters.
func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

func appendTrimmed(parts []string, seg string) []string {
	if seg = strings.TrimSpace(seg); seg != "" {
		parts = append(parts, seg)
	}
	return parts
}
