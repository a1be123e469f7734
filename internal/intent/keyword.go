package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/patric-chuzhbe/newsdigest/internal/conversation"
)

var (
	confirmPattern     = regexp.MustCompile(`^(yes|y|yeah|yep|sure|ok|okay|confirm|please do|add it)\b`)
	donePattern        = regexp.MustCompile(`^(done|that's all|thats all|finished|nothing else|all good)\b`)
	unsubscribePattern = regexp.MustCompile(`\b(unsubscribe|stop sending|cancel my subscription)\b`)
	viewPattern        = regexp.MustCompile(`\b(view|show|list|what are|which)\b.*\bsources?\b|^sources\??$`)
	removePattern      = regexp.MustCompile(`^(?:please\s+)?(?:remove|delete|drop)\s+(.+?)(?:\s+from my sources)?$`)
	addPattern         = regexp.MustCompile(`^(?:please\s+)?(?:add|subscribe to|follow)\s+(.+)$`)
	clockPattern       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(am|pm)?\b|\b(\d{1,2})\s*(am|pm)\b`)
	timezonePattern    = regexp.MustCompile(`\b([A-Z][A-Za-z]+/[A-Za-z_]+(?:/[A-Za-z_]+)?|UTC|GMT)\b`)
	timeWordPattern    = regexp.MustCompile(`\b(time|deliver|delivery|send)\b`)
	zoneWordPattern    = regexp.MustCompile(`\b(timezone|time zone|tz)\b`)
)

// KeywordResolver classifies messages with fixed patterns. It is used when
// no language model is configured and needs no network.
type KeywordResolver struct{}

func NewKeywordResolver() *KeywordResolver {
	return &KeywordResolver{}
}

func (r *KeywordResolver) Resolve(_ context.Context, message, _ string) conversation.Intent {
	original := strings.TrimSpace(message)
	text := strings.ToLower(original)

	switch {
	case text == "":
		return conversation.Help{}
	case unsubscribePattern.MatchString(text):
		return conversation.Unsubscribe{}
	case confirmPattern.MatchString(text):
		return conversation.ConfirmAddSource{}
	case donePattern.MatchString(text):
		return conversation.Done{}
	case viewPattern.MatchString(text):
		return conversation.ViewSources{}
	}

	if source, ok := capture(removePattern, text, original); ok {
		return conversation.RemoveSource{Source: source}
	}
	if source, ok := capture(addPattern, text, original); ok {
		return conversation.AddSource{Source: source}
	}

	clock, hasClock := findClock(text)
	timezone := timezonePattern.FindString(original)
	switch {
	case hasClock && timezone != "":
		return conversation.SetTimeAndTimezone{Time: clock, Timezone: timezone}
	case timezone != "" || zoneWordPattern.MatchString(text):
		return conversation.SetTimezone{Timezone: timezone}
	case hasClock || timeWordPattern.MatchString(text):
		return conversation.ChangeTime{Time: clock}
	}

	return conversation.Help{}
}

// capture returns the first group of re matched against the lower-cased
// text, sliced from the original so URLs keep their case.
func capture(re *regexp.Regexp, text, original string) (string, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}
	source := text[loc[2]:loc[3]]
	if len(text) == len(original) {
		source = original[loc[2]:loc[3]]
	}
	return strings.TrimSpace(source), true
}

// findClock looks for "9:30", "09:30", "9:30pm" or "7am" and normalizes it to
// 24-hour HH:MM. A match that is not a valid time yields "" and true so the
// caller still reports an invalid time.
func findClock(text string) (string, bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	var hourText, minuteText, meridiem string
	if m[1] != "" {
		hourText, minuteText, meridiem = m[1], m[2], m[3]
	} else {
		hourText, minuteText, meridiem = m[4], "00", m[5]
	}

	hour, _ := strconv.Atoi(hourText)
	minute, _ := strconv.Atoi(minuteText)
	switch meridiem {
	case "am":
		if hour < 1 || hour > 12 {
			return "", true
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return "", true
		}
		if hour != 12 {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return "", true
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
