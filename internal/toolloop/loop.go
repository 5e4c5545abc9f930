// Package toolloop drives the bounded conversation between an LLM provider
// and a tool registry: one assistant turn, dispatch every requested tool
// call, trim history, repeat until the model stops calling tools, the step
// budget runs out, or finalize is accepted.
package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"devtwin/internal/journal"
	"devtwin/internal/llm"
	"devtwin/internal/tools"
)

// Options configures one Run call. Defaults mirror the driver's own
// defaults so callers only need to override what matters for their node.
type Options struct {
	Model                 string
	MaxSteps              int
	StopOnFinalize        bool
	InitialMessages       []llm.ChatMessage
	ExtraUserMessage      string
	MaxToolResultChars    int
	MaxHistoryChars       int
	KeepLastMessages      int
	NoteTag               string
	RepetitionGuardEnabled bool
	Events                *journal.Emitter
	Notes                 *journal.Notes
}

func (o Options) withDefaults() Options {
	if o.MaxSteps <= 0 {
		o.MaxSteps = 8
	}
	if o.MaxToolResultChars <= 0 {
		o.MaxToolResultChars = 4000
	}
	if o.MaxHistoryChars <= 0 {
		o.MaxHistoryChars = 100000
	}
	if o.KeepLastMessages == 0 {
		o.KeepLastMessages = 40
	}
	return o
}

// Result is everything the caller needs after the loop ends: the updated
// message history (for resuming in a later call), the last assistant text,
// and the finalize tool's arguments if it was invoked.
type Result struct {
	Messages      []llm.ChatMessage
	LastAIText    string
	FinalizeArgs  map[string]interface{}
	FinalizeText  string
	FinalizeAccepted bool
}

// Run executes the bounded tool loop against provider and registry,
// starting from systemPrompt/userInput unless opts.InitialMessages resumes
// a prior conversation.
func Run(ctx context.Context, provider llm.Provider, registry *tools.Registry, systemPrompt, userInput string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	var messages []llm.ChatMessage
	if len(opts.InitialMessages) > 0 {
		messages = append(messages, opts.InitialMessages...)
		if opts.ExtraUserMessage != "" {
			messages = append(messages, llm.ChatMessage{Role: "user", Content: opts.ExtraUserMessage})
		}
	} else {
		messages = llm.InitialMessages(systemPrompt, userInput)
	}

	if opts.NoteTag != "" && opts.Notes != nil {
		opts.Notes.Append("loop_start", opts.NoteTag+" started")
	}

	toolSchemas := toToolSchemas(registry)
	guard := newRepetitionGuard(opts.RepetitionGuardEnabled)

	result := &Result{Messages: messages}

	for step := 0; step < opts.MaxSteps; step++ {
		resp, err := provider.Chat(ctx, llm.ChatRequest{Model: opts.Model, Messages: messages, Tools: toolSchemas})
		if err != nil {
			return nil, fmt.Errorf("toolloop: step %d: %w", step, err)
		}

		assistantMsg := llm.ChatMessage{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)
		messages = llm.TrimMessages(messages, opts.KeepLastMessages, opts.MaxHistoryChars)
		result.LastAIText = resp.Text

		recordAssistantEvent(opts.Events, resp.Text, len(resp.ToolCalls) > 0, step)

		if len(resp.ToolCalls) == 0 {
			break
		}

		for _, call := range resp.ToolCalls {
			args := decodeArgs(call.Arguments)
			resultText := dispatchToolCall(registry, guard, opts, call, args)

			messages = append(messages, llm.ChatMessage{Role: "tool", Name: call.Name, ToolCallID: call.ID, Content: resultText})
			messages = llm.TrimMessages(messages, opts.KeepLastMessages, opts.MaxHistoryChars)

			recordToolEvent(opts.Events, call.Name, args, resultText)

			if call.Name == "finalize" {
				result.FinalizeArgs = args
				result.FinalizeText = resultText
				result.FinalizeAccepted = strings.HasPrefix(resultText, "ACCEPTED")
				if result.FinalizeAccepted && opts.StopOnFinalize {
					result.Messages = messages
					return result, nil
				}
			}
		}
	}

	result.Messages = messages
	return result, nil
}

func decodeArgs(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{}
	}
	return args
}

// dispatchToolCall applies the repetition guard, invokes the tool (or
// reports it unknown), and injects the same repeat-guard hints the driver
// appends so the model is nudged toward a different approach instead of
// spinning.
func dispatchToolCall(registry *tools.Registry, guard *repetitionGuard, opts Options, call llm.ChatToolCall, args map[string]interface{}) string {
	tool, ok := registry.Lookup(call.Name)
	if !ok {
		return "Unknown tool " + call.Name
	}

	key := repeatKey(call.Name, args)
	count := guard.record(key)

	if guard.enabled && call.Name == "shell" {
		cmd, _ := args["command"].(string)
		if group := testRunnerGroup(cmd); group != "" {
			groupCount := guard.recordGroup(group)
			if groupCount >= guard.skipAt {
				if opts.Notes != nil {
					opts.Notes.Append("test_runner_suppressed", cmd)
				}
				return fmt.Sprintf("SKIPPED_REPEAT_GROUP: %s invoked %d times with variations. Suppressed to avoid loops.", group, groupCount)
			}
		}
		if count >= guard.skipAt {
			return fmt.Sprintf("SKIPPED_REPEAT: shell command repeated %d times. Adjust your approach.", count)
		}
	} else if guard.enabled && count >= guard.skipAt {
		return fmt.Sprintf("SKIPPED_REPEAT: %s repeated %d times. Adjust your approach.", call.Name, count)
	}

	text := tool.Invoke(tools.ToolCall{Name: call.Name, Arguments: args}).Text

	if guard.enabled && call.Name == "read_file" && count >= guard.warnReadAt {
		text += "\n\nREPEAT_GUARD: read_file called multiple times for the same path. Consider search/list_dir or write_file instead."
	}
	if guard.enabled && call.Name == "shell" && count >= guard.warnShell {
		text += "\n\nREPEAT_GUARD: shell invoked with the same command multiple times. Adjust your strategy if it keeps failing."
	}

	if len(text) > opts.MaxToolResultChars {
		text = llm.ClipText(text, opts.MaxToolResultChars)
	}
	return text
}

func toToolSchemas(registry *tools.Registry) []llm.ToolSchema {
	names := registry.Names()
	out := make([]llm.ToolSchema, 0, len(names))
	for _, name := range names {
		t, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, llm.ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

func recordAssistantEvent(events *journal.Emitter, text string, hasToolCalls bool, step int) {
	if events == nil || strings.TrimSpace(text) == "" {
		return
	}
	events.Assistant(text, hasToolCalls, step)
}

func recordToolEvent(events *journal.Emitter, name string, args map[string]interface{}, resultText string) {
	if events == nil {
		return
	}
	events.ToolInvocation(name, args, resultText)
}
