package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Dialect describes how a delimited file is laid out.
type Dialect struct {
	Delimiter        rune
	QuoteChar        rune
	DoubleQuote      bool
	SkipInitialSpace bool
}

func (d Dialect) String() string {
	return fmt.Sprintf("delimiter=%q quote=%q doublequote=%v skipinitialspace=%v",
		d.Delimiter, d.QuoteChar, d.DoubleQuote, d.SkipInitialSpace)
}

// ErrNoDelimiter is returned by Sniff when no delimiter stands out.
var ErrNoDelimiter = errors.New("could not determine delimiter")

// preferredDelimiters breaks ties between equally consistent candidates.
var preferredDelimiters = []rune{',', '\t', ';', ' ', ':'}

// headerCheckRows is how many rows after the header vote in HasHeader.
const headerCheckRows = 20

// Sniff guesses the dialect of a sample taken from the start of a file.
//
// Quoted fields are the strongest evidence: a quote preceded and followed by
// the same non-word character names both the quote and the delimiter. Without
// quotes, the delimiter is the character whose per-line frequency is the most
// consistent across the sample.
func Sniff(sample string) (Dialect, error) {
	sample = normalizeNewlines(sample)

	quote, doubleQuote, delim, skip := guessQuoteAndDelimiter(sample)
	if delim == 0 {
		delim, skip = guessDelimiter(sample)
	}
	if delim == 0 {
		return Dialect{}, ErrNoDelimiter
	}
	if quote == 0 {
		quote = '"'
	}

	return Dialect{
		Delimiter:        delim,
		QuoteChar:        quote,
		DoubleQuote:      doubleQuote,
		SkipInitialSpace: skip,
	}, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ── quote evidence ─────────────────────────────────────────

type quoteMatch struct {
	quote rune
	delim rune
	space bool
}

func isQuote(r rune) bool { return r == '"' || r == '\'' }

func isWord(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func isDelimChar(r rune) bool { return r != '\n' && !isQuote(r) && !isWord(r) }

// openAfterDelim matches `<delim>< ?><quote>` at i and returns the position
// of the quote.
func openAfterDelim(rs []rune, i int) (delim rune, space bool, qpos int, ok bool) {
	if i >= len(rs) || !isDelimChar(rs[i]) {
		return 0, false, 0, false
	}
	if i+2 < len(rs) && rs[i+1] == ' ' && isQuote(rs[i+2]) {
		return rs[i], true, i + 2, true
	}
	if i+1 < len(rs) && isQuote(rs[i+1]) {
		return rs[i], false, i + 1, true
	}
	return 0, false, 0, false
}

// openAtLineStart matches a quote at the start of a line, either at i or
// right after a newline at i.
func openAtLineStart(rs []rune, i int) (qpos int, ok bool) {
	if i < len(rs) && (i == 0 || rs[i-1] == '\n') && isQuote(rs[i]) {
		return i, true
	}
	if i+1 < len(rs) && rs[i] == '\n' && isQuote(rs[i+1]) {
		return i + 1, true
	}
	return 0, false
}

func atLineEnd(rs []rune, i int) bool { return i == len(rs) || rs[i] == '\n' }

// scanners run in order; the first one with any match decides.
var quoteScanners = []func([]rune) []quoteMatch{
	// ,"text",
	func(rs []rune) []quoteMatch {
		var out []quoteMatch
		for i := 0; i < len(rs); {
			d, sp, q, ok := openAfterDelim(rs, i)
			end := -1
			if ok {
				for j := q + 1; j+1 < len(rs); j++ {
					if rs[j] == rs[q] && rs[j+1] == d {
						end = j + 2
						break
					}
				}
			}
			if end < 0 {
				i++
				continue
			}
			out = append(out, quoteMatch{quote: rs[q], delim: d, space: sp})
			i = end
		}
		return out
	},
	// "text",
	func(rs []rune) []quoteMatch {
		var out []quoteMatch
		for i := 0; i < len(rs); {
			q, ok := openAtLineStart(rs, i)
			end := -1
			var m quoteMatch
			if ok {
				for j := q + 1; j+1 < len(rs); j++ {
					if rs[j] == rs[q] && isDelimChar(rs[j+1]) {
						m = quoteMatch{quote: rs[q], delim: rs[j+1]}
						end = j + 2
						if end < len(rs) && rs[end] == ' ' {
							m.space = true
							end++
						}
						break
					}
				}
			}
			if end < 0 {
				i++
				continue
			}
			out = append(out, m)
			i = end
		}
		return out
	},
	// ,"text"
	func(rs []rune) []quoteMatch {
		var out []quoteMatch
		for i := 0; i < len(rs); {
			d, sp, q, ok := openAfterDelim(rs, i)
			end := -1
			if ok {
				for j := q + 1; j < len(rs); j++ {
					if rs[j] == rs[q] && atLineEnd(rs, j+1) {
						end = j + 1
						break
					}
				}
			}
			if end < 0 {
				i++
				continue
			}
			out = append(out, quoteMatch{quote: rs[q], delim: d, space: sp})
			i = end
		}
		return out
	},
	// "text" alone on a line
	func(rs []rune) []quoteMatch {
		var out []quoteMatch
		for i := 0; i < len(rs); {
			q, ok := openAtLineStart(rs, i)
			end := -1
			if ok {
				for j := q + 1; j < len(rs); j++ {
					if rs[j] == rs[q] && atLineEnd(rs, j+1) {
						end = j + 1
						break
					}
				}
			}
			if end < 0 {
				i++
				continue
			}
			out = append(out, quoteMatch{quote: rs[q]})
			i = end
		}
		return out
	},
}

// tally counts occurrences and remembers first-seen order, which decides
// ties in max.
type tally struct {
	order []rune
	n     map[rune]int
}

func (t *tally) add(r rune) {
	if t.n == nil {
		t.n = make(map[rune]int)
	}
	if _, ok := t.n[r]; !ok {
		t.order = append(t.order, r)
	}
	t.n[r]++
}

func (t *tally) max() rune {
	var best rune
	bestN := -1
	for _, r := range t.order {
		if t.n[r] > bestN {
			best, bestN = r, t.n[r]
		}
	}
	return best
}

func guessQuoteAndDelimiter(data string) (quote rune, doubleQuote bool, delim rune, skip bool) {
	rs := []rune(data)

	var matches []quoteMatch
	for _, scan := range quoteScanners {
		if matches = scan(rs); len(matches) > 0 {
			break
		}
	}
	if len(matches) == 0 {
		return 0, false, 0, false
	}

	var quotes, delims tally
	spaces := 0
	for _, m := range matches {
		quotes.add(m.quote)
		if m.delim != 0 {
			delims.add(m.delim)
		}
		if m.space {
			spaces++
		}
	}

	quote = quotes.max()
	if len(delims.order) > 0 {
		delim = delims.max()
		skip = delims.n[delim] == spaces
	}

	d := ""
	if delim != 0 {
		d = regexp.QuoteMeta(string(delim))
	}
	q := regexp.QuoteMeta(string(quote))
	dq := regexp.MustCompile(fmt.Sprintf(
		`(?m)((%[1]s)|^)\W*%[2]s[^%[1]s\n]*%[2]s[^%[1]s\n]*%[2]s\W*((%[1]s)|$)`, d, q))
	doubleQuote = dq.MatchString(data)

	return quote, doubleQuote, delim, skip
}

// ── frequency evidence ─────────────────────────────────────

// freqCount is how many lines contained a character exactly freq times.
type freqCount struct {
	freq  int
	lines int
}

func guessDelimiter(data string) (rune, bool) {
	var lines []string
	for _, l := range strings.Split(data, "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return 0, false
	}

	chunk := min(10, len(lines))

	// charFreq[c] lists (frequency, line count) pairs in first-seen order.
	var charFreq [127][]freqCount
	type mode struct {
		freq, weight int
	}
	modes := make(map[rune]mode)
	delims := make(map[rune]mode)

	iteration := 0
	for start, end := 0, chunk; start < len(lines); start, end = end, end+chunk {
		iteration++
		for _, line := range lines[start:min(end, len(lines))] {
			var counts [127]int
			for i := 0; i < len(line); i++ {
				if line[i] < 127 {
					counts[line[i]]++
				}
			}
			for c := range charFreq {
				charFreq[c] = bump(charFreq[c], counts[c])
			}
		}

		for c, items := range charFreq {
			if len(items) == 0 || (len(items) == 1 && items[0].freq == 0) {
				continue
			}
			if len(items) == 1 {
				modes[rune(c)] = mode{items[0].freq, items[0].lines}
				continue
			}
			best := 0
			for i, it := range items {
				if it.lines > items[best].lines {
					best = i
				}
			}
			rest := 0
			for i, it := range items {
				if i != best {
					rest += it.lines
				}
			}
			modes[rune(c)] = mode{items[best].freq, items[best].lines - rest}
		}

		total := float64(min(chunk*iteration, len(lines)))
		for consistency := 1.0; len(delims) == 0 && consistency >= 0.9; consistency -= 0.01 {
			for c, m := range modes {
				if m.freq > 0 && m.weight > 0 && float64(m.weight)/total >= consistency {
					delims[c] = m
				}
			}
		}

		if len(delims) == 1 {
			for c := range delims {
				return c, skipsInitialSpace(lines[0], c)
			}
		}
	}

	if len(delims) == 0 {
		return 0, false
	}

	for _, d := range preferredDelimiters {
		if _, ok := delims[d]; ok {
			return d, skipsInitialSpace(lines[0], d)
		}
	}

	// Highest (freq, weight, char) wins.
	cands := make([]rune, 0, len(delims))
	for c := range delims {
		cands = append(cands, c)
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := delims[cands[i]], delims[cands[j]]
		if a.freq != b.freq {
			return a.freq < b.freq
		}
		if a.weight != b.weight {
			return a.weight < b.weight
		}
		return cands[i] < cands[j]
	})
	d := cands[len(cands)-1]
	return d, skipsInitialSpace(lines[0], d)
}

func bump(items []freqCount, freq int) []freqCount {
	for i := range items {
		if items[i].freq == freq {
			items[i].lines++
			return items
		}
	}
	return append(items, freqCount{freq: freq, lines: 1})
}

func skipsInitialSpace(line string, d rune) bool {
	return strings.Count(line, string(d)) == strings.Count(line, string(d)+" ")
}

// ── header detection ───────────────────────────────────────

// columnNumeric marks a column whose values all parse as numbers; other
// column types are the (non-negative) value length.
const columnNumeric = -1

// HasHeader reports whether rows[0] looks like a header. Each column of the
// following rows is typed as numeric or by its length; columns with a single
// consistent type vote on whether the first row differs from it.
func HasHeader(rows [][]string) bool {
	if len(rows) == 0 {
		return false
	}
	header := rows[0]
	columns := len(header)

	types := make(map[int]int, columns)
	unset := make(map[int]bool, columns)
	for i := 0; i < columns; i++ {
		unset[i] = true
	}
	dropped := make(map[int]bool)

	for checked, row := range rows[1:] {
		if checked > headerCheckRows {
			break
		}
		if len(row) != columns {
			continue
		}
		for col := 0; col < columns; col++ {
			if dropped[col] {
				continue
			}
			t := cellType(row[col])
			switch {
			case unset[col]:
				types[col] = t
				delete(unset, col)
			case types[col] != t:
				dropped[col] = true
			}
		}
	}

	vote := 0
	for col := 0; col < columns; col++ {
		if dropped[col] {
			continue
		}
		if unset[col] {
			vote++
			continue
		}
		var differs bool
		if types[col] == columnNumeric {
			differs = !isNumeric(header[col])
		} else {
			differs = utf8.RuneCountInString(header[col]) != types[col]
		}
		if differs {
			vote++
		} else {
			vote--
		}
	}
	return vote > 0
}

func cellType(v string) int {
	if isNumeric(v) {
		return columnNumeric
	}
	return utf8.RuneCountInString(v)
}

// isNumeric accepts reals and complex literals such as "3", "1e5", "inf",
// "2j" and "(1+2j)".
func isNumeric(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		return true
	}
	if !strings.ContainsAny(s, "jJ") {
		return false
	}
	s = strings.NewReplacer("j", "i", "J", "i").Replace(s)
	_, err := strconv.ParseComplex(s, 128)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

// sampleRows parses the sniffing sample with d. A parse error ends the
// sample early since the last row is usually cut mid-record.
func sampleRows(sample string, d Dialect) [][]string {
	r := newCSVReader(strings.NewReader(sample), d)
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		rows = append(rows, rec)
	}
	return rows
}

func newCSVReader(r io.Reader, d Dialect) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = d.Delimiter
	cr.TrimLeadingSpace = d.SkipInitialSpace
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}
