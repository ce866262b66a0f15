// Package extract pulls candidate medication names out of free-text chat
// messages. It is heuristic and deliberately conservative: an ambiguous
// message may yield no candidates, but obvious function words must never
// come back as medications.
package extract

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// namePhrase matches one or more capitalized tokens. Name tokens are
// anchored on an uppercase first letter; hyphens cover brands like
// Co-codamol.
const namePhrase = `([A-Z][A-Za-z0-9-]*(?:\s+[A-Z][A-Za-z0-9-]*)*)`

// rule is a single surface pattern. Rules are applied in priority order and
// each captures the candidate phrase in group 1.
type rule struct {
	name string
	re   *regexp2.Regexp
}

var rules = []rule{
	{"about", regexp2.MustCompile(`\b(?:[Tt]ell me about|[Dd]etails about|[Aa]bout)\s+`+namePhrase, regexp2.None)},
	{"suffix", regexp2.MustCompile(namePhrase+`\s+(?:information|details|side effects|dosage|prescription)\b`, regexp2.None)},
	{"what-is", regexp2.MustCompile(`\b[Ww]hat(?:'s|’s| is)\s+(?:a\s+|an\s+|the\s+)?`+namePhrase, regexp2.None)},
	{"availability", regexp2.MustCompile(`\b(?:[Dd]o you have|[Cc]an [Ii] get|[Ii]s|[Aa]re)\s+`+namePhrase+`(?:\s+(?:available|in stock|here))?`, regexp2.None)},
	{"info-for", regexp2.MustCompile(`\b(?:[Ii]nformation|[Dd]etails)\s+for\s+`+namePhrase, regexp2.None)},
}

// triggerPhrases back the first fallback: when no pattern matched, the token
// immediately after one of these is considered.
var triggerPhrases = []string{
	"do you have",
	"tell me about",
	"what about",
	"can i get",
	"information about",
	"details about",
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "this", "that", "these", "those", "there", "then",
		"what", "whats", "when", "where", "which", "who", "whom", "whose", "why", "how",
		"is", "are", "was", "were", "will", "would", "can", "could", "should", "shall",
		"may", "might", "must", "do", "does", "did", "done",
		"have", "has", "had", "having",
		"tell", "give", "show", "find", "need", "want", "know", "think", "help",
		"about", "with", "without", "for", "and", "but", "not", "from", "into",
		"you", "your", "yours", "our", "ours", "they", "them", "their",
		"his", "her", "him", "she", "its", "it's", "we", "us", "me", "my", "mine",
		"any", "anything", "some", "something", "all", "every", "each",
		"much", "many", "more", "most", "other", "another",
		"take", "taking", "took", "use", "using", "used", "buy", "order", "get", "got",
		"also", "just", "here", "now", "today", "tomorrow", "yesterday",
		"yes", "no", "okay", "ok", "please", "thanks", "thank", "sorry",
		"hello", "good", "morning", "afternoon", "evening", "night",
		"medication", "medications", "medicine", "medicines", "drug", "drugs",
		"pharmacy", "pharmacist", "tablet", "tablets", "capsule", "capsules",
		"side", "effect", "effects", "dosage", "dose", "prescription", "prescriptions",
		"information", "details", "stock", "available", "availability", "store",
		"question", "answer", "english",
	} {
		stopwords[w] = struct{}{}
	}
}

// Extract returns candidate medication names found in message, duplicates
// removed, first-appearance order preserved. It never returns function
// words; it may return nothing.
func Extract(message string) []string {
	var found []string

	for _, r := range rules {
		for _, phrase := range findAll(r.re, message) {
			if name, ok := acceptPhrase(phrase); ok {
				found = append(found, name)
			}
		}
	}

	if len(found) == 0 {
		found = triggerFallback(message)
	}
	if len(found) == 0 {
		if name, ok := firstCapitalizedFallback(message); ok {
			found = append(found, name)
		}
	}

	return finalFilter(dedupe(found))
}

func findAll(re *regexp2.Regexp, s string) []string {
	var out []string
	m, err := re.FindStringMatch(s)
	for err == nil && m != nil {
		if g := m.GroupByNumber(1); g != nil {
			out = append(out, g.String())
		}
		m, err = re.FindNextMatch(m)
	}
	return out
}

// acceptPhrase validates a captured phrase. Multi-word phrases are accepted
// only when every constituent word individually passes.
func acceptPhrase(phrase string) (string, bool) {
	words := strings.Fields(strings.TrimSpace(phrase))
	if len(words) == 0 {
		return "", false
	}
	for _, w := range words {
		if !acceptWord(w) {
			return "", false
		}
	}
	return strings.Join(words, " "), true
}

// acceptWord applies the length and stopword rules: tokens of 4+ letters
// are rejected when they are common English words; tokens under 4 letters
// are rejected except the Xxx shape (one capital, two lowercase).
func acceptWord(w string) bool {
	if len(w) >= 4 {
		return !isStopword(w)
	}
	if len(w) == 3 {
		return isUpper(w[0]) && isLower(w[1]) && isLower(w[2])
	}
	return false
}

func triggerFallback(message string) []string {
	lower := strings.ToLower(message)
	tokens := tokenize(message)
	lowerTokens := tokenize(lower)

	var out []string
	for _, phrase := range triggerPhrases {
		if !strings.Contains(lower, phrase) {
			continue
		}
		parts := strings.Fields(phrase)
		last := parts[len(parts)-1]
		for i, lt := range lowerTokens {
			if lt != last || i+1 >= len(tokens) {
				continue
			}
			// verify the whole phrase precedes this position
			if !phraseAt(lowerTokens, i-len(parts)+1, parts) {
				continue
			}
			next := tokens[i+1]
			if isUpper(next[0]) {
				if name, ok := acceptPhrase(next); ok {
					out = append(out, name)
				}
			}
		}
	}
	return out
}

func phraseAt(tokens []string, start int, phrase []string) bool {
	if start < 0 || start+len(phrase) > len(tokens) {
		return false
	}
	for i, p := range phrase {
		if tokens[start+i] != p {
			return false
		}
	}
	return true
}

// firstCapitalizedFallback is the last resort: the first capitalized token
// of length >= 4 that clears the acceptance rule. At most one candidate.
func firstCapitalizedFallback(message string) (string, bool) {
	for _, tok := range tokenize(message) {
		if len(tok) >= 4 && isUpper(tok[0]) && acceptWord(tok) {
			return tok, true
		}
	}
	return "", false
}

func tokenize(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// finalFilter re-applies the minimum length and stopword exclusion across
// every word of every surviving candidate.
func finalFilter(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if len(n) < 3 {
			continue
		}
		ok := true
		for _, w := range strings.Fields(n) {
			if isStopword(w) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, n)
		}
	}
	return out
}

func isStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isLower(b byte) bool { return b >= 'a' && b <= 'z' }
