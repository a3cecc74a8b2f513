// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recognize finds PII in extracted text with pattern detectors.
// Number-like detections are validated (Luhn for payment cards, the
// resident registration checksum for national IDs) and some detectors
// only fire, or fire with more confidence, near a keyword. When OCR
// tokens are supplied, the tokens holding a match become the entity's
// coordinates.
package recognize

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"github.com/pdiddy/pii-masker/pkg/types"
)

// keywordWindow is how many runes before a match are searched for a
// detector's keywords.
const keywordWindow = 24

// maxScore keeps pattern detections below certainty.
const maxScore = 0.99

// detector is one pattern for one PII type.
type detector struct {
	typ   types.PiiType
	re    *regexp.Regexp
	group int
	score float64

	keywords       []string
	boost          float64
	requireKeyword bool

	// check scales the score of a match; zero drops it.
	check func(match string) float64
}

// Recognizer runs a fixed set of detectors.
type Recognizer struct {
	detectors []detector

	// MinScore drops detections scoring below it.
	MinScore float64
}

// New returns a recognizer with the default detectors, optionally limited
// to the given types.
func New(only ...types.PiiType) *Recognizer {
	want := map[types.PiiType]bool{}
	for _, t := range only {
		want[t] = true
	}
	r := &Recognizer{MinScore: 0.3}
	for _, d := range defaultDetectors() {
		if len(want) == 0 || want[d.typ] {
			r.detectors = append(r.detectors, d)
		}
	}
	return r
}

func defaultDetectors() []detector {
	return []detector{
		{
			typ:   types.PiiEmail,
			re:    regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`),
			score: 0.95,
		},
		{
			typ:      types.PiiNationalID,
			re:       regexp.MustCompile(`\d{2}(?:0[1-9]|1[0-2])(?:0[1-9]|[12]\d|3[01])[- ]?[1-8]\d{6}`),
			score:    0.9,
			check:    rrnCheck,
			keywords: []string{"주민", "resident", "rrn"},
			boost:    0.05,
		},
		{
			typ:      types.PiiCardNumber,
			re:       regexp.MustCompile(`(?:\d{4}[- ]?){3}\d{4}|3[47]\d{2}[- ]?\d{6}[- ]?\d{5}`),
			score:    0.9,
			check:    luhnCheck,
			keywords: []string{"카드", "card"},
			boost:    0.05,
		},
		{
			typ:      types.PiiPhone,
			re:       regexp.MustCompile(`(?:\+82[- ]?1[016789]|01[016789])[- .]?\d{3,4}[- .]?\d{4}`),
			score:    0.85,
			keywords: []string{"전화", "휴대", "연락처", "phone", "tel", "mobile"},
			boost:    0.1,
		},
		{
			typ:      types.PiiPhone,
			re:       regexp.MustCompile(`0(?:2|[3-6][1-5]|70)[- .)]\d{3,4}[- .]\d{4}`),
			score:    0.7,
			keywords: []string{"전화", "연락처", "phone", "tel", "fax"},
			boost:    0.15,
		},
		{
			typ:      types.PiiDriverLicense,
			re:       regexp.MustCompile(`\d{2}-\d{2}-\d{6}-\d{2}`),
			score:    0.85,
			keywords: []string{"면허", "license", "licence"},
			boost:    0.1,
		},
		{
			typ:      types.PiiPassport,
			re:       regexp.MustCompile(`[MSRGD]\d{8}|[MSRGD]\d{3}[A-Z]\d{4}`),
			score:    0.5,
			keywords: []string{"여권", "passport"},
			boost:    0.4,
		},
		{
			typ:   types.PiiIPAddress,
			re:    regexp.MustCompile(`(?:\d{1,3}\.){3}\d{1,3}`),
			score: 0.8,
			check: ipCheck,
		},
		{
			typ:            types.PiiFinancialAcct,
			re:             regexp.MustCompile(`\d{2,6}-\d{2,6}-\d{2,7}(?:-\d{1,3})?`),
			score:          0.35,
			keywords:       []string{"계좌", "은행", "입금", "account", "acct", "bank", "iban"},
			boost:          0.5,
			requireKeyword: true,
		},
		{
			typ:            types.PiiDateOfBirth,
			re:             regexp.MustCompile(`(?:19|20)\d{2}(?:[-./]|년\s?)(?:0?[1-9]|1[0-2])(?:[-./]|월\s?)(?:0?[1-9]|[12]\d|3[01])일?`),
			score:          0.3,
			keywords:       []string{"생년월일", "생일", "birth", "dob", "born"},
			boost:          0.55,
			requireKeyword: true,
		},
		{
			typ:      types.PiiAddress,
			re:       regexp.MustCompile(`[가-힣]{2,}(?:특별시|광역시|특별자치시|특별자치도|도|시)\s+[가-힣]+(?:시|군|구)(?:\s+[가-힣]+(?:구|동|읍|면))?\s+[가-힣0-9]+(?:로|길)\s*\d+(?:-\d+)?`),
			score:    0.75,
			keywords: []string{"주소", "address"},
			boost:    0.1,
		},
		{
			typ:   types.PiiPersonName,
			re:    regexp.MustCompile(`(?:성명|이름|담당자|[Nn]ame)\s*:\s*([가-힣]{2,4}|[A-Z][a-z]+(?: [A-Z][a-z]+){1,2})`),
			group: 1,
			score: 0.75,
		},
	}
}

// candidate is a detection before overlap resolution. Offsets are runes.
type candidate struct {
	typ      types.PiiType
	start    int
	end      int
	score    float64
	priority int
}

// Recognize returns the entities found in text, ordered by offset.
// Overlapping detections are resolved in favor of the higher score, then
// the longer span, then the detector listed first.
func (r *Recognizer) Recognize(text string, ocr []types.OCRToken) []types.Entity {
	if text == "" {
		return nil
	}
	norm := normalize(text)
	runeAt := runeOffsets(norm)
	folded := cases.Fold()

	var cands []candidate
	for pri, d := range r.detectors {
		for _, m := range d.re.FindAllStringSubmatchIndex(norm, -1) {
			bs, be := m[2*d.group], m[2*d.group+1]
			if bs < 0 || !bounded(norm, bs, be) {
				continue
			}
			match := norm[bs:be]
			score := d.score
			if d.check != nil {
				f := d.check(match)
				if f == 0 {
					continue
				}
				score *= f
			}
			if len(d.keywords) > 0 {
				near := hasKeyword(folded.String(window(norm, m[0])), d.keywords)
				if !near && d.requireKeyword {
					continue
				}
				if near {
					score += d.boost
				}
			}
			score = math.Round(math.Min(score, maxScore)*100) / 100
			if score < r.MinScore {
				continue
			}
			cands = append(cands, candidate{typ: d.typ, start: runeAt[bs], end: runeAt[be], score: score, priority: pri})
		}
	}

	kept := resolve(cands)
	runes := []rune(text)
	out := make([]types.Entity, 0, len(kept))
	for _, c := range kept {
		e := types.Entity{
			Text:      string(runes[c.start:c.end]),
			Type:      c.typ,
			Score:     c.score,
			StartChar: c.start,
			EndChar:   c.end,
		}
		e.Coordinates = coordinates(e.Text, ocr)
		out = append(out, e)
	}
	return out
}

func resolve(cands []candidate) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if la, lb := a.end-a.start, b.end-b.start; la != lb {
			return la > lb
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.start < b.start
	})
	var kept []candidate
	for _, c := range cands {
		clash := false
		for _, k := range kept {
			if c.start < k.end && k.start < c.end {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })
	return kept
}

// normalize narrows full-width ASCII and the ideographic space rune by
// rune, so rune offsets into the result are rune offsets into the input.
// Hangul is left alone.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if p := width.LookupRune(r); p.Kind() == width.EastAsianFullwidth {
			if n := p.Narrow(); n != 0 {
				r = n
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// runeOffsets maps each byte offset of s, and len(s), to a rune offset.
func runeOffsets(s string) []int {
	out := make([]int, len(s)+1)
	n := 0
	for i := range s {
		out[i] = n
		_, size := utf8.DecodeRuneInString(s[i:])
		for k := 1; k < size; k++ {
			out[i+k] = n
		}
		n++
	}
	out[len(s)] = n
	return out
}

// bounded reports whether the match is not glued to ASCII letters or
// digits on either side.
func bounded(s string, start, end int) bool {
	if start > 0 && isASCIIAlnum(s[start-1]) {
		return false
	}
	return end >= len(s) || !isASCIIAlnum(s[end])
}

func isASCIIAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// window returns up to keywordWindow runes of s ending at byte offset end.
func window(s string, end int) string {
	start := end
	for n := 0; n < keywordWindow && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	return s[start:end]
}

func hasKeyword(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
