package intake

import (
	"regexp"
	"strings"
	"time"
)

// Field extractors are pure functions mapping a raw utterance to a
// normalized candidate value, or "" when the utterance does not answer the
// field. They are deliberately heuristic: transcripts arrive as messy
// conversational text and each field has its own tolerance for noise.

var (
	existingClientRe = regexp.MustCompile(`(?i)\b(existing|current client|already a client|my attorney)\b`)
	newClientRe      = regexp.MustCompile(`(?i)\b(new|potential|accident|crash|injur\w*|collision|hit|fell|slip|trip|truck|car|bus|uber|lyft|new case|hurt)\b`)

	nameIntentRe = regexp.MustCompile(`(?i)\b(?:my name is|this is|i am|i'm)\s+([a-z][a-z\s.'-]{2,})$`)
	namePairRe   = regexp.MustCompile(`\b([A-Z][a-z]+)\s+([A-Z][a-z]+(?:-[A-Z][a-z]+)?)\b`)
	nameTokenRe  = regexp.MustCompile(`^[a-z][a-z'-]+$`)

	phoneRe = regexp.MustCompile(`(\+?1[\s\-.]?)?\(?\d{3}\)?[\s\-.]?\d{3}[\s\-.]?\d{4}`)
	digitRe = regexp.MustCompile(`\d`)

	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)

	dateSlashRe    = regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{2,4}))?\b`)
	dateMonthRe    = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?`)
	dateRelativeRe = regexp.MustCompile(`(?i)\b(today|yesterday|last\s+(?:mon|tue|wed|thu|fri|sat|sun)(?:\w+)?)\b`)

	locCommaRe = regexp.MustCompile(`\b([A-Za-z][A-Za-z .'-]*[A-Za-z.]),\s*([A-Za-z]{2})\b`)
	locPrepRe  = regexp.MustCompile(`\b(?:in|at)\s+([A-Za-z][A-Za-z.\-']*(?:\s+[A-Za-z.\-']+)*)`)
	locGuardRe = regexp.MustCompile(`(?i)^(an?|the)\s+(accident|injury|crash)\b`)
	stateAbbrRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

	incidentRe = regexp.MustCompile(`(?i)\b(accident|injur\w*|crash|collision|rear[- ]?ended|hit|dog bite|bite|slip|trip|work|car|uber|lyft|truck|bicycle|pedestrian|bus|motorcycle|fell|fall)\b`)

	injuryKeywordRe    = regexp.MustCompile(`(?i)\b(injur\w*|hurt|pain|fracture|broken|bruise|wound|back|neck|leg|arm|head)\b`)
	treatmentKeywordRe = regexp.MustCompile(`(?i)\b(treat\w*|surgery|therapy|medication|doctor|hospital)\b`)

	affirmativeRe = regexp.MustCompile(`(?i)\b(yes|yeah|yep|correct|that'?s right|sounds good|looks good|uh huh|affirmative|ok|okay|sure)\b`)
	negativeRe    = regexp.MustCompile(`(?i)\b(no|not|nope|nah|wrong|incorrect|fix|change)\b`)

	monthNumbers = map[string]string{
		"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
		"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
	}

	// Words that disqualify a bare two-token utterance from being a name.
	nameBlacklist = map[string]bool{
		"it": true, "happened": true, "about": true, "week": true, "ago": true,
		"accident": true, "crash": true, "phone": true, "number": true,
		"email": true, "date": true, "location": true, "yesterday": true,
		"today": true, "when": true, "where": true, "what": true,
	}
)

func titleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ExtractClientType classifies the caller as "existing" or "new".
// Incident vocabulary implies a new matter even without the word "new".
func ExtractClientType(text string) string {
	if existingClientRe.MatchString(text) {
		return "existing"
	}
	if newClientRe.MatchString(text) {
		return "new"
	}
	return ""
}

// ExtractFullName returns a title-cased first-and-last name, or "".
func ExtractFullName(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if m := nameIntentRe.FindStringSubmatch(t); m != nil {
		cand := titleCase(strings.Join(strings.Fields(m[1]), " "))
		if len(strings.Fields(cand)) >= 2 {
			return cand
		}
	}
	if m := namePairRe.FindStringSubmatch(t); m != nil {
		return m[1] + " " + m[2]
	}
	// Bare "john smith" answers: exactly two plausible lowercase tokens.
	tokens := strings.Fields(strings.ToLower(t))
	if len(tokens) == 2 {
		for _, tok := range tokens {
			if !nameTokenRe.MatchString(tok) || nameBlacklist[tok] {
				return ""
			}
		}
		return titleCase(strings.Join(tokens, " "))
	}
	return ""
}

// ExtractPhone returns a canonical +1XXXXXXXXXX number, or "". Digits
// spelled out as words ("five five five...") are not accepted.
func ExtractPhone(text string) string {
	m := phoneRe.FindString(text)
	if m == "" {
		return ""
	}
	digits := strings.Join(digitRe.FindAllString(m, -1), "")
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	}
	return ""
}

// ExtractEmail returns a lowercase email address, accepting the spoken
// "name at host dot com" form.
func ExtractEmail(text string) string {
	spoken := strings.ToLower(text)
	spoken = strings.ReplaceAll(spoken, " at ", "@")
	spoken = strings.ReplaceAll(spoken, " dot ", ".")
	return emailRe.FindString(spoken)
}

// ExtractDate returns "today", "yesterday", a "last <weekday>" phrase, or a
// zero-padded mm/dd/yyyy date, or "".
func ExtractDate(text string) string {
	if m := dateRelativeRe.FindString(text); m != "" {
		return strings.ToLower(strings.Join(strings.Fields(m), " "))
	}
	if m := dateSlashRe.FindStringSubmatch(text); m != nil {
		year := m[3]
		switch len(year) {
		case 0:
			year = time.Now().Format("2006")
		case 2:
			year = "20" + year
		}
		return pad2(m[1]) + "/" + pad2(m[2]) + "/" + year
	}
	if m := dateMonthRe.FindStringSubmatch(text); m != nil {
		year := m[3]
		if year == "" {
			year = time.Now().Format("2006")
		}
		return monthNumbers[strings.ToLower(m[1])] + "/" + pad2(m[2]) + "/" + year
	}
	return ""
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ExtractLocation returns a "City, ST" or title-cased place phrase, or "".
func ExtractLocation(text string) string {
	if m := locCommaRe.FindStringSubmatch(text); m != nil {
		return titleCase(m[1]) + ", " + strings.ToUpper(m[2])
	}
	if m := locPrepRe.FindStringSubmatch(text); m != nil {
		phrase := strings.TrimSpace(m[1])
		// Guard against "in a car accident" style false positives.
		if locGuardRe.MatchString(phrase) || incidentRe.MatchString(phrase) {
			return ""
		}
		return titleCase(phrase)
	}
	// Fallback: trailing two-letter state, e.g. "phoenix az".
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) >= 2 {
		st := parts[len(parts)-1]
		if stateAbbrRe.MatchString(st) {
			city := strings.Join(parts[:len(parts)-1], " ")
			return titleCase(city) + ", " + strings.ToUpper(st)
		}
	}
	return ""
}

// ExtractIncident accepts the utterance verbatim when it carries incident
// vocabulary or is long enough to be a description.
func ExtractIncident(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	if incidentRe.MatchString(s) || len(strings.Fields(s)) >= 5 {
		return strings.TrimRight(s, ".")
	}
	return ""
}

// IsAffirmative reports whether the utterance reads as a yes.
func IsAffirmative(text string) bool { return affirmativeRe.MatchString(text) }

// IsNegative reports whether the utterance reads as a no.
func IsNegative(text string) bool { return negativeRe.MatchString(text) }
