package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	verrors "github.com/voicecal/voicecal/internal/errors"
)

const sysPrompt = `You are a calendar command planner.
Return ONLY JSON per the provided schema. If ambiguous, set needs_clarification=true and include a short clarification_question.
Never invent missing facts. Never free-form text, only JSON.
Rules:
- "target" MUST be a JSON object. If the user mentions a title like "lunch", put it into target.match_by_text.
- "params" MUST be a JSON object (even if empty).
- For actions that set a time (create_event, update_event, move_event), ALWAYS include params.start and params.end as ISO 8601 with timezone (e.g., 2025-10-10T12:00:00-07:00).
- If the user uses relative dates like "today" or "tomorrow", resolve them to an explicit date using the provided timezone.
- If only a single time is given, assume a 30-minute duration unless the user specified a different length.`

const missingTimeQuestion = "What date and start/end time should I use? " +
	"Please specify both (e.g., 2025-10-10 12:00-12:45, America/Los_Angeles)."

// OpenAIConfig holds the LLM interpreter configuration.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// OpenAIInterpreter interprets utterances with a chat model constrained
// to JSON output. It never holds any store lock: callers interpret
// first and apply afterwards.
type OpenAIInterpreter struct {
	client *openai.Client
	config *OpenAIConfig
}

// NewOpenAIInterpreter creates a new LLM-backed interpreter.
func NewOpenAIInterpreter(cfg *OpenAIConfig) *OpenAIInterpreter {
	if cfg == nil {
		cfg = &OpenAIConfig{}
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIInterpreter{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Interpret sends the utterance to the model and decodes the returned
// command. Transport and decode failures surface as ADAPTER_UNAVAILABLE
// so callers can fall back to the keyword interpreter.
func (p *OpenAIInterpreter) Interpret(ctx context.Context, text string, tz string) (*Command, error) {
	if p.config.APIKey == "" {
		return nil, verrors.AdapterUnavailable("openai api key is not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"User timezone: %s\nUtterance: %s\nOutput keys: action, target, params, confidence, needs_clarification, clarification_question\n",
		tz, text)

	var raw string
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.config.Model,
			Temperature: 0.1,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sysPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		raw = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, verrors.AdapterUnavailable("chat completion failed", err)
	}

	cmd, err := decodeCommand(raw)
	if err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// rawCommand tolerates the common model slips before strict decoding:
// target emitted as a bare string instead of an object.
type rawCommand struct {
	Action                string          `json:"action"`
	Target                json.RawMessage `json:"target"`
	Params                Params          `json:"params"`
	Confidence            float64         `json:"confidence"`
	NeedsClarification    bool            `json:"needs_clarification"`
	ClarificationQuestion string          `json:"clarification_question"`
}

func decodeCommand(raw string) (*Command, error) {
	var rc rawCommand
	if err := json.Unmarshal([]byte(raw), &rc); err != nil {
		return nil, verrors.AdapterUnavailable("model returned malformed JSON", err)
	}

	cmd := &Command{
		Action:                Action(rc.Action),
		Params:                rc.Params,
		Confidence:            rc.Confidence,
		NeedsClarification:    rc.NeedsClarification,
		ClarificationQuestion: rc.ClarificationQuestion,
	}
	if cmd.Action == "" {
		cmd.Action = ActionCreateEvent
	}

	if len(rc.Target) > 0 {
		trimmed := strings.TrimSpace(string(rc.Target))
		if strings.HasPrefix(trimmed, `"`) {
			// A bare string is shorthand for a text match.
			var text string
			if err := json.Unmarshal(rc.Target, &text); err != nil {
				return nil, verrors.AdapterUnavailable("model returned malformed target", err)
			}
			cmd.Target.MatchByText = text
		} else if err := json.Unmarshal(rc.Target, &cmd.Target); err != nil {
			return nil, verrors.AdapterUnavailable("model returned malformed target", err)
		}
	}
	if cmd.Target.Calendar == "" {
		cmd.Target.Calendar = "primary"
	}

	// A time-setting command without resolved times cannot be applied;
	// ask instead of guessing.
	if cmd.SetsTime() && (cmd.Params.Start == "" || cmd.Params.End == "") {
		cmd.NeedsClarification = true
		cmd.ClarificationQuestion = missingTimeQuestion
	}
	return cmd, nil
}

// doWithRetry executes a function with exponential backoff retry.
func (p *OpenAIInterpreter) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("interpreter request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
