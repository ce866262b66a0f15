// Package llm orchestrates one chat turn: context retrieval, medication
// resolution, prompt assembly and the model call.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/pharmassist/pharmassist/internal/db"
	"github.com/pharmassist/pharmassist/internal/extract"
	"github.com/pharmassist/pharmassist/internal/knowledge"
	"github.com/pharmassist/pharmassist/internal/models"
	"github.com/pharmassist/pharmassist/internal/openfda"
)

// ErrEmptyResponse is the one fatal per-request failure: the model answered
// with nothing usable, so there is nothing to show the user.
var ErrEmptyResponse = errors.New("model returned empty response")

const (
	providerName   = "xAI Grok"
	temperature    = 0.2
	historyLimit   = 5
	knowledgeLimit = 3
	previewLen     = 600
	modelTimeout   = 30 * time.Second
	asyncTimeout   = 15 * time.Second
)

const systemPrompt = `You are an AI-powered pharmacist information assistant for a retail pharmacy chain.
Your scope is strictly limited to factual information about medications and pharmacy services,
based only on the structured medication data and conversation context provided to you.

Hard constraints:
- Answer only questions directly related to medications, prescriptions, over-the-counter status,
  or closely related pharmacy topics. Politely refuse anything else and remind the user of your scope.
- Provide only facts from the data you are given. Do not invent or guess missing facts or medications.
- NEVER give medical advice, diagnose conditions, suggest treatments, or recommend dose adjustments.
  For advice-seeking questions, say you cannot provide medical advice and redirect to a licensed
  healthcare professional.
- If a requested medication is not in the provided data, say clearly that it could not be found
  and that any medication can be looked up on request.

Style:
- Keep responses short: 2-4 sentences, at most 4 bullet points, no verbose technical detail.
- All responses must be in English, regardless of the input language.
- Always end with a concise disclaimer that you do not provide medical advice, plus an offer of
  further help within your pharmacy/medication scope.`

// Service runs the chat pipeline. It has no internal state machine; every
// sub-step except the model call is allowed to fail silently and be logged.
type Service struct {
	model     llms.Model
	modelName string
	apiURL    string
	resolver  *openfda.Client
	store     *db.Store
	index     *knowledge.Index
	logger    *zap.Logger
}

// New builds a Service backed by an OpenAI-wire-compatible chat endpoint
// (the xAI API speaks this protocol).
func New(apiURL, token, model string, resolver *openfda.Client, store *db.Store, index *knowledge.Index, logger *zap.Logger) (*Service, error) {
	client, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(apiURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init model client: %w", err)
	}
	return NewWithClient(client, model, apiURL, resolver, store, index, logger), nil
}

// NewWithClient wires an existing model client; used directly by tests.
func NewWithClient(client llms.Model, modelName, apiURL string, resolver *openfda.Client, store *db.Store, index *knowledge.Index, logger *zap.Logger) *Service {
	return &Service{
		model:     client,
		modelName: modelName,
		apiURL:    apiURL,
		resolver:  resolver,
		store:     store,
		index:     index,
		logger:    logger,
	}
}

// promptMedication is the user-facing subset of a resolved record that goes
// into the prompt.
type promptMedication struct {
	Name        string   `json:"name"`
	Use         string   `json:"use"`
	RequiresRx  bool     `json:"requires_prescription"`
	SideEffects []string `json:"common_side_effects,omitempty"`
	DosageForm  string   `json:"dosage_form,omitempty"`
}

// Chat handles one user message and returns the assistant response plus the
// request's debug trace.
func (s *Service) Chat(ctx context.Context, userMessage, userID string) (string, models.DebugTrace, error) {
	trace := models.DebugTrace{
		RequestID:        uuid.NewString(),
		Provider:         providerName,
		Model:            s.modelName,
		APIURL:           s.apiURL,
		RequestTimestamp: time.Now().UTC().Format(time.RFC3339),
		Medications:      []string{},
		APICalls:         []models.APICall{},
	}

	history := s.store.Recent(userID, userMessage, historyLimit)
	related := s.index.Query(ctx, userMessage, knowledgeLimit)

	names := extract.Extract(userMessage)

	var meds []promptMedication
	var resolved []models.MedicationRecord
	for _, name := range names {
		record, call := s.resolver.Resolve(ctx, name)
		trace.APICalls = append(trace.APICalls, call)
		if record.IsError() {
			if fb, ok := openfda.Fallback(name); ok {
				s.logger.Info("using fallback medication data", zap.String("name", name))
				record = fb
			}
		}
		if record.IsError() {
			continue
		}
		trace.Medications = append(trace.Medications, record.Name)
		meds = append(meds, filterRecord(record))
		resolved = append(resolved, record)
	}

	// fire-and-forget: index what we learned; never blocks the response
	for _, record := range resolved {
		go s.upsertKnowledge(record)
	}

	userContent := buildUserContent(userMessage, history, related, meds)
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userContent),
	}

	requestBody := marshalForAccounting(s.modelName, userContent)
	trace.RequestBytes = len(requestBody)
	trace.RequestCharacters = len([]rune(string(requestBody)))
	trace.PromptTokens = countTokens(systemPrompt + userContent)
	trace.PromptPreview = truncate(userContent, previewLen)

	callCtx, cancel := context.WithTimeout(ctx, modelTimeout)
	defer cancel()

	start := time.Now()
	completion, err := s.model.GenerateContent(callCtx, messages, llms.WithTemperature(temperature))
	trace.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		return "", trace, fmt.Errorf("generate completion: %w", err)
	}

	content := ""
	if len(completion.Choices) > 0 {
		content = strings.TrimSpace(completion.Choices[0].Content)
	}
	if content == "" {
		return "", trace, ErrEmptyResponse
	}

	// fire-and-forget: a lost history write must not fail the chat turn
	go s.appendTurn(userID, userMessage, content)

	return content, trace, nil
}

func (s *Service) upsertKnowledge(record models.MedicationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
	defer cancel()
	if err := s.index.Upsert(ctx, record.Name, record); err != nil {
		s.logger.Warn("knowledge upsert failed", zap.String("name", record.Name), zap.Error(err))
	}
}

func (s *Service) appendTurn(userID, userMessage, response string) {
	if err := s.store.Append(userID, userMessage, response); err != nil {
		s.logger.Warn("conversation append failed", zap.String("userId", userID), zap.Error(err))
	}
}

func filterRecord(record models.MedicationRecord) promptMedication {
	use := ""
	if len(record.Indications) > 0 {
		use = record.Indications[0]
	} else if record.DosageInstructions != "" {
		use = firstSentence(record.DosageInstructions)
	}
	if use == "" {
		use = "See package insert"
	}
	effects := record.CommonSideEffects
	if len(effects) > 3 {
		effects = effects[:3]
	}
	return promptMedication{
		Name:        record.Name,
		Use:         use,
		RequiresRx:  record.RequiresRx,
		SideEffects: effects,
		DosageForm:  record.DosageForm,
	}
}

func buildUserContent(userMessage string, history []models.Turn, related []models.KnowledgeResult, meds []promptMedication) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question:\n\"\"\"%s\"\"\"\n", strings.TrimSpace(userMessage))

	if len(history) > 0 {
		b.WriteString("\nRelevant prior conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.UserMessage, turn.AssistantResponse)
		}
	}

	if len(related) > 0 {
		b.WriteString("\nPossibly relevant medication knowledge:\n")
		for _, doc := range related {
			fmt.Fprintf(&b, "- %s (similarity %.2f)\n", doc.Content, doc.Similarity)
		}
	}

	if len(meds) > 0 {
		data, err := json.MarshalIndent(meds, "", "  ")
		if err == nil {
			fmt.Fprintf(&b, "\nStructured medication data (JSON):\n%s\n", data)
		}
	} else {
		b.WriteString("\nNo specific medication was identified in this message. Any medication can be looked up on request.\n")
	}

	return b.String()
}

// marshalForAccounting reproduces the wire payload shape for request size
// reporting in the debug trace.
func marshalForAccounting(model, userContent string) []byte {
	payload := struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}{
		Model:       model,
		Temperature: temperature,
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
	}
	body, _ := json.Marshal(payload)
	return body
}

func firstSentence(text string) string {
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return strings.TrimSpace(text[:i+1])
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens uses the cl100k_base vocabulary when available and falls back
// to a chars/4 estimate when it cannot be loaded (e.g. offline).
func countTokens(text string) int {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}
