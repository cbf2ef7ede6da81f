package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"
)

var pixel = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}

func history() []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt},
		{Role: RoleUser, Content: TaskPrompt("log in")},
		{Role: RoleUser, Content: `{"url":"https://example.com"}`, Image: pixel, ImageRef: "step-1"},
		{Role: RoleAssistant, Content: `{"thinking":"t","action":"Click(0)"}`},
		{Role: RoleUser, Content: `{"url":"https://example.com/login"}`, Image: pixel, ImageRef: "step-2"},
	}
}

func TestOpenAIProviderDecide(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4.1-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"thinking\":\"login form visible\",\"action\":\"Type(1, \\\"me@example.com\\\")\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Options{APIKey: "test-key", BaseURL: srv.URL, MaxTokens: 256, MaxImages: 1}, zaptest.NewLogger(t))
	require.NoError(t, err)

	d, err := p.Decide(context.Background(), history())
	require.NoError(t, err)
	assert.Equal(t, "login form visible", d.Thinking)
	assert.Equal(t, `Type(1, "me@example.com")`, d.Action)

	assert.Equal(t, "gpt-4.1-mini", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[3].(map[string]any)["role"])

	// Only the newest image survives MaxImages=1.
	_, older := msgs[2].(map[string]any)["content"].(string)
	assert.True(t, older, "older observation is sent as plain text")

	parts := msgs[4].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	url := img["image_url"].(map[string]any)["url"].(string)
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(pixel), url)
}

func TestOpenAIProviderUndecodable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"no json here"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Options{APIKey: "k", BaseURL: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = p.Decide(context.Background(), history())
	assert.ErrorIs(t, err, ErrUndecodableResponse)
}

func TestOpenAITextFromParts(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: "x"}},
			{Type: openai.ChatMessagePartTypeText, Text: "first"},
			{Type: openai.ChatMessagePartTypeText, Text: "second"},
		},
	}
	assert.Equal(t, "first", openAIText(msg))
	assert.Equal(t, "", openAIText(openai.ChatCompletionMessage{}))
}

func TestClaudeProviderDecide(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Here is my answer:\n{\"thinking\":\"done\",\"action\":\"Done(\\\"logged in\\\")\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewClaudeProvider(Options{APIKey: "test-key", BaseURL: srv.URL, MaxTokens: 512}, zaptest.NewLogger(t))
	require.NoError(t, err)

	d, err := p.Decide(context.Background(), history())
	require.NoError(t, err)
	assert.Equal(t, "done", d.Thinking)
	assert.Equal(t, `Done("logged in")`, d.Action)

	system := body["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, SystemPrompt, system[0].(map[string]any)["text"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4, "system turn is lifted out of messages")
	last := msgs[3].(map[string]any)
	assert.Equal(t, "user", last["role"])
	blocks := last["content"].([]any)
	require.Len(t, blocks, 2)
	image := blocks[1].(map[string]any)
	assert.Equal(t, "image", image["type"])
	source := image["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/jpeg", source["media_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(pixel), source["data"])
}

func TestGeminiContents(t *testing.T) {
	system, contents := geminiContents(history())

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, SystemPrompt, system.Parts[0].Text)

	require.Len(t, contents, 4)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[2].Role)

	obs := contents[3]
	require.Len(t, obs.Parts, 2)
	require.NotNil(t, obs.Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", obs.Parts[1].InlineData.MIMEType)
	assert.Equal(t, pixel, obs.Parts[1].InlineData.Data)
}

func TestGeminiText(t *testing.T) {
	assert.Equal(t, "", geminiText(nil))
	assert.Equal(t, "", geminiText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "pondering", Thought: true},
			{InlineData: &genai.Blob{Data: pixel, MIMEType: "image/jpeg"}},
			{Text: `{"thinking":"x","action":"Refresh()"}`},
		}},
	}}}
	assert.Equal(t, `{"thinking":"x","action":"Refresh()"}`, geminiText(resp))
}

func TestNewProviderRequiresKey(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	for _, name := range []string{"claude", "openai", "gemini"} {
		_, err := NewProvider(ctx, name, Options{}, logger)
		assert.Error(t, err, name)
	}

	_, err := NewProvider(ctx, "mystery", Options{APIKey: "k"}, logger)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	d, err := NewProvider(ctx, "gpt", Options{APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, d)
}
