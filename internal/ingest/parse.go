package ingest

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fintrack/internal/core"
)

var (
	amountPattern = regexp.MustCompile(`(?i)(?:\b(?:rs\.?|inr)|₹)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	datePattern   = regexp.MustCompile(`\b(\d{2}-\d{2}-\d{4})\b`)
	kindPattern   = regexp.MustCompile(`(?i)\b(credited|credit|received|debited|debit|paid|spent)\b`)
	payeePattern  = regexp.MustCompile(`(?i)\b(?:at|to|from)\s+`)
	merchantWord  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9&'-]*$`)
)

// Words that end a merchant name or can never start one.
var merchantStopWords = map[string]struct{}{
	"on": {}, "via": {}, "ref": {}, "upi": {}, "for": {}, "info": {}, "avl": {},
	"bal": {}, "txn": {}, "at": {}, "to": {}, "from": {}, "your": {}, "you": {},
	"a": {}, "the": {}, "acct": {}, "account": {}, "card": {}, "is": {}, "by": {},
}

const maxMerchantWords = 4

// ParseMessage extracts a candidate transaction from a feed message. It
// returns false when the body carries no currency amount or no kind
// keyword; such misses are expected and not errors. Dates written as
// dd-mm-yyyy win over the message timestamp, which is otherwise truncated
// to the calendar day in loc.
func ParseMessage(msg Message, loc *time.Location) (core.CandidateTransaction, bool) {
	m := amountPattern.FindStringSubmatch(msg.Body)
	if m == nil {
		return core.CandidateTransaction{}, false
	}
	amount, err := core.ParseAmount(m[1])
	if err != nil || !amount.IsPositive() {
		return core.CandidateTransaction{}, false
	}

	kind, ok := classify(msg.Body)
	if !ok {
		return core.CandidateTransaction{}, false
	}

	c := core.CandidateTransaction{
		ID:         msg.ID,
		Amount:     amount,
		Date:       messageDate(msg, loc),
		Kind:       kind,
		RawText:    msg.Body,
		Merchant:   merchant(msg.Body),
		ReceivedAt: msg.Timestamp,
	}
	return c, true
}

// classify picks the kind from the earliest keyword in the body.
func classify(body string) (core.Kind, bool) {
	m := kindPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	switch strings.ToLower(m[1]) {
	case "credited", "credit", "received":
		return core.KindIncome, true
	default:
		return core.KindExpense, true
	}
}

func messageDate(msg Message, loc *time.Location) core.Date {
	if m := datePattern.FindStringSubmatch(msg.Body); m != nil {
		if t, err := time.Parse("02-01-2006", m[1]); err == nil {
			return core.DateOf(t)
		}
	}
	if loc == nil {
		loc = time.Local
	}
	return core.DateOf(msg.Timestamp.In(loc))
}

// merchant returns a title-cased payee name following "at", "to" or
// "from", or "" when none can be found.
func merchant(body string) string {
	caser := cases.Title(language.English)
	for _, loc := range payeePattern.FindAllStringIndex(body, -1) {
		var words []string
		for _, w := range strings.Fields(body[loc[1]:]) {
			trimmed := strings.TrimRight(w, ".,;:")
			if !merchantWord.MatchString(trimmed) {
				break
			}
			if _, stop := merchantStopWords[strings.ToLower(trimmed)]; stop {
				break
			}
			words = append(words, trimmed)
			if trimmed != w || len(words) == maxMerchantWords {
				break
			}
		}
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			if len(w) > 2 {
				words[i] = caser.String(strings.ToLower(w))
			} else {
				words[i] = strings.ToUpper(w)
			}
		}
		return strings.Join(words, " ")
	}
	return ""
}
