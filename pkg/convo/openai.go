package convo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const defaultMaxHistory = 20

// replyEnvelope is the JSON shape the model is instructed to produce.
type replyEnvelope struct {
	Reply      string   `json:"reply"`
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Actions    []string `json:"actions"`
	Emergency  bool     `json:"emergency"`
}

const structuredReplyInstruction = `Respond only with a JSON object: ` +
	`{"reply": "<spoken answer>", "intent": "<one of: legal_document, legal_question, emergency, smalltalk, other>", ` +
	`"confidence": <0..1>, "actions": ["<suggested follow-up action>"], "emergency": <true if the user seems to be in danger>}`

// OpenAIEngine chat-completion conversation engine with per-session
// history kept in memory.
type OpenAIEngine struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxHistory   int
	logger       *logrus.Logger

	mu       sync.Mutex
	contexts map[string][]openai.ChatCompletionMessage
}

// NewOpenAIEngine creates a conversation engine
func NewOpenAIEngine(cfg Config) *OpenAIEngine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &OpenAIEngine{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		maxHistory:   maxHistory,
		logger:       logrus.StandardLogger(),
		contexts:     make(map[string][]openai.ChatCompletionMessage),
	}
}

// Converse appends the user turn to the session context and requests a
// structured reply.
func (e *OpenAIEngine) Converse(ctx context.Context, sessionID, text string, opts Options) (*Reply, error) {
	messages := e.snapshotContext(sessionID, text, opts.Language)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	var envelope replyEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		// Model ignored the format instruction; use the raw text as the reply.
		envelope = replyEnvelope{Reply: strings.TrimSpace(content), Intent: "other", Confidence: 0.5}
	}

	e.appendAssistantTurn(sessionID, text, envelope.Reply)

	e.logger.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"intent":    envelope.Intent,
	}).Debug("conversation turn completed")

	return &Reply{
		Text:              envelope.Reply,
		Intent:            envelope.Intent,
		Confidence:        envelope.Confidence,
		Actions:           envelope.Actions,
		EmergencyDetected: envelope.Emergency,
	}, nil
}

// Release drops the session's conversation context
func (e *OpenAIEngine) Release(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.contexts, sessionID)
}

func (e *OpenAIEngine) snapshotContext(sessionID, text, language string) []openai.ChatCompletionMessage {
	e.mu.Lock()
	defer e.mu.Unlock()

	system := e.systemPrompt
	if language != "" {
		system += " Reply in language: " + language + "."
	}
	system += " " + structuredReplyInstruction

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	messages = append(messages, e.contexts[sessionID]...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	return messages
}

func (e *OpenAIEngine) appendAssistantTurn(sessionID, userText, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := append(e.contexts[sessionID],
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
	)
	if len(history) > e.maxHistory {
		history = history[len(history)-e.maxHistory:]
	}
	e.contexts[sessionID] = history
}
