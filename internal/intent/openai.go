// Package intent turns a subscriber's free-text message into a
// conversation.Intent. Resolvers never fail: anything they cannot
// classify becomes Help.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/newsdigest/internal/conversation"
	"github.com/patric-chuzhbe/newsdigest/internal/logger"
)

type completer interface {
	Complete(ctx context.Context, system, prompt string, jsonMode bool) (string, error)
}

const systemPrompt = "You are a helpful assistant that parses user intents."

const promptTemplate = `Parse the user's intent from their message. The user email is: %s

Message: %q

Possible intents:
- add_source: User wants to add a news source (extract the site name or URL as "source")
- confirm_add_source: User agrees to a previously proposed source ("yes", "sure", "add it")
- remove_source: User wants to remove a news source (extract the source name as "source")
- change_time: User wants to change delivery time (extract time in 24-hour HH:MM format)
- set_timezone: User wants to set timezone (extract an IANA timezone such as "America/New_York")
- set_time_and_timezone: User gives both a delivery time and a timezone
- view_sources: User wants to see their current sources
- done: User is finished making changes
- unsubscribe: User wants to unsubscribe
- help: User needs help or the intent is unclear

Return a JSON object with:
- intent: one of the above intents
- source: the source if applicable
- time: the time if applicable (in HH:MM format)
- timezone: the timezone if applicable`

type llmIntent struct {
	Intent   string `json:"intent"`
	Source   string `json:"source"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

// OpenAIResolver asks a language model to classify the message.
type OpenAIResolver struct {
	llm completer
}

func NewOpenAIResolver(llm completer) *OpenAIResolver {
	return &OpenAIResolver{llm: llm}
}

func (r *OpenAIResolver) Resolve(ctx context.Context, message, email string) conversation.Intent {
	content, err := r.llm.Complete(ctx, systemPrompt, fmt.Sprintf(promptTemplate, email, message), true)
	if err != nil {
		logger.Log.Warnw("intent resolution failed, falling back to help", "email", email, zap.Error(err))
		return conversation.Help{}
	}

	var parsed llmIntent
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &parsed); err != nil {
		logger.Log.Warnw("unparsable intent payload", "email", email, "payload", content, zap.Error(err))
		return conversation.Help{}
	}

	return conversation.FromFields(
		strings.ToLower(strings.TrimSpace(parsed.Intent)),
		strings.TrimSpace(parsed.Source),
		strings.TrimSpace(parsed.Time),
		strings.TrimSpace(parsed.Timezone),
	)
}

// extractJSONObject strips prose or code fences some models wrap around
// the JSON object.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
