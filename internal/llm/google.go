package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GoogleProvider speaks the Gemini generateContent REST API, which nests
// conversation turns under "contents" with "user"/"model" roles and
// represents tool calls as functionCall/functionResponse parts.
type GoogleProvider struct {
	APIKey     string
	BaseURL    string
	httpClient *http.Client
}

func NewGoogle(apiKey, baseURL string) *GoogleProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	return &GoogleProvider{APIKey: apiKey, BaseURL: baseURL, httpClient: http.DefaultClient}
}

type googlePart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *googleFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *googleFuncResp `json:"functionResponse,omitempty"`
}

type googleFuncCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type googleFuncResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type googleTool struct {
	FunctionDeclarations []googleFunctionDecl `json:"functionDeclarations"`
}

type googleRequest struct {
	SystemInstruction *googleContent `json:"systemInstruction,omitempty"`
	Contents          []googleContent `json:"contents"`
	Tools             []googleTool    `json:"tools,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func toGoogleContents(msgs []ChatMessage) (*googleContent, []googleContent) {
	var system *googleContent
	var out []googleContent
	idCounter := 0
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = &googleContent{Role: "system", Parts: []googlePart{{Text: m.Content}}}
		case "assistant":
			var parts []googlePart
			if m.Content != "" {
				parts = append(parts, googlePart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, googlePart{FunctionCall: &googleFuncCall{Name: tc.Name, Args: json.RawMessage(tc.Arguments)}})
			}
			out = append(out, googleContent{Role: "model", Parts: parts})
		case "tool":
			idCounter++
			out = append(out, googleContent{Role: "user", Parts: []googlePart{{
				FunctionResponse: &googleFuncResp{Name: m.Name, Response: map[string]interface{}{"result": m.Content}},
			}}})
		default:
			out = append(out, googleContent{Role: "user", Parts: []googlePart{{Text: m.Content}}})
		}
	}
	_ = idCounter
	return system, out
}

func toGoogleTools(tools []ToolSchema) []googleTool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]googleFunctionDecl, len(tools))
	for i, t := range tools {
		decls[i] = googleFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	return []googleTool{{FunctionDeclarations: decls}}
}

func (p *GoogleProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.APIKey == "" {
		return nil, errors.New("llm: API key not configured")
	}

	system, contents := toGoogleContents(req.Messages)
	body := googleRequest{SystemInstruction: system, Contents: contents, Tools: toGoogleTools(req.Tools)}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.BaseURL, req.Model, p.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed googleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("llm: decoding response: %w (status %d)", err, resp.StatusCode)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("llm: provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return nil, errors.New("llm: empty response from provider")
	}

	out := &ChatResponse{}
	var textParts []string
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, ChatToolCall{
				Name:      part.FunctionCall.Name,
				Arguments: string(part.FunctionCall.Args),
			})
		}
	}
	out.Text = strings.Join(textParts, "")
	return out, nil
}
