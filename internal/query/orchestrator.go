// ABOUTME: Multi-turn query orchestrator driving the model/tool-call loop under a turn budget
// ABOUTME: Resolves tool calls through the catalog, executes them on leased sessions, and builds the trace

package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/2389/toolgate/internal/catalog"
	"github.com/2389/toolgate/internal/errkind"
	"github.com/2389/toolgate/internal/events"
	"github.com/2389/toolgate/internal/llm"
	"github.com/2389/toolgate/internal/pool"
	"github.com/2389/toolgate/internal/rag"
)

const systemPrompt = "You are a helpful assistant. Use the available tools when they help answer the user's question."

// SessionPool is the slice of the pool the orchestrator consumes.
type SessionPool interface {
	Lease(ctx context.Context, server string) (*pool.Session, error)
	Return(server string, sess *pool.Session, callErr error)
	Catalog() *catalog.Catalog
}

// ToolUse is one entry in a request's tools-used trace: which tool ran where,
// with what arguments, and how it came out. Result carries the tool's output
// on success; Detail describes the failure otherwise.
type ToolUse struct {
	Tool      string         `json:"tool"`
	Server    string         `json:"server,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Status    string         `json:"status"`
	Result    string         `json:"result,omitempty"`
	Detail    string         `json:"detail,omitempty"`
}

// Response is the aggregated outcome of one orchestrated request. Status is
// "success" or "error"; even on error the trace holds everything that ran
// before the abort.
type Response struct {
	RequestID string        `json:"request_id"`
	Content   string        `json:"response"`
	ToolsUsed []ToolUse     `json:"tools_used"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMS int64         `json:"elapsed_ms"`
}

// Settings bounds one orchestrator.
type Settings struct {
	MaxTurns int
}

// Orchestrator runs the multi-turn conversation loop for one request at a
// time per call; it is safe for concurrent use.
type Orchestrator struct {
	pool      SessionPool
	model     llm.Client
	augmenter rag.Augmenter
	gate      *Gate
	settings  Settings
	emitter   *events.Emitter
	logger    *slog.Logger
}

// New creates an orchestrator. The augmenter may be nil to disable the
// retrieval step.
func New(p SessionPool, model llm.Client, augmenter rag.Augmenter, gate *Gate, settings Settings, emitter *events.Emitter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		pool:      p,
		model:     model,
		augmenter: augmenter,
		gate:      gate,
		settings:  settings,
		emitter:   emitter,
		logger:    logger.With("component", "orchestrator"),
	}
}

// Query runs one full request: admission, optional augmentation, then the
// model/tool loop until the model stops calling tools or the turn budget
// runs out. The returned Response is non-nil even on error.
func (o *Orchestrator) Query(ctx context.Context, query string) (*Response, error) {
	start := time.Now()
	requestID := uuid.New().String()

	if err := o.gate.Acquire(); err != nil {
		o.emitter.Emit(events.Event{Name: events.RequestRejected, RequestID: requestID})
		return o.fail(requestID, nil, start, err), err
	}
	defer o.gate.Release()
	o.emitter.Emit(events.Event{Name: events.RequestAdmitted, RequestID: requestID})

	logger := o.logger.With("request_id", requestID)
	logger.Info("query started", "query_len", len(query))

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	if o.augmenter != nil {
		if ragCtx, err := o.augmenter.Retrieve(ctx, query); err != nil {
			// Augmentation is best-effort; the request proceeds without it.
			logger.Warn("augmentation failed", "error", err)
		} else if ragCtx != "" {
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: ragCtx})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	cat := o.pool.Catalog()
	tools := cat.ModelTools()
	trace := []ToolUse{}

	// Assistant text from every turn contributes to the final answer, not
	// just the closing turn's.
	var answers []string

	for turn := 0; turn < o.settings.MaxTurns; turn++ {
		result, err := o.model.Complete(ctx, messages, tools)
		if err != nil {
			return o.fail(requestID, trace, start, err), err
		}
		if result.Content != "" {
			answers = append(answers, result.Content)
		}

		if len(result.ToolCalls) == 0 {
			logger.Info("query complete", "turns", turn+1, "tools_used", len(trace))
			return &Response{
				RequestID: requestID,
				Content:   strings.Join(answers, "\n"),
				ToolsUsed: trace,
				Status:    "success",
				Elapsed:   time.Since(start),
				ElapsedMS: time.Since(start).Milliseconds(),
			}, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			toolMsg, use, err := o.executeToolCall(ctx, cat, call, logger)
			trace = append(trace, use)
			if err != nil {
				return o.fail(requestID, trace, start, err), err
			}
			messages = append(messages, toolMsg)
		}
	}

	o.emitter.Emit(events.Event{Name: events.TurnBudgetExceeded, RequestID: requestID})
	err := errkind.Newf(errkind.TurnBudgetExceeded, "no final answer after %d turns", o.settings.MaxTurns)
	return o.fail(requestID, trace, start, err), err
}

// executeToolCall resolves, validates, and runs one tool call. Tool-level
// failures are absorbed: they come back as an error-status trace entry and a
// tool message so the model can react. Only pool exhaustion and an open
// circuit abort the request, signalled by a non-nil error.
func (o *Orchestrator) executeToolCall(ctx context.Context, cat *catalog.Catalog, call llm.ToolCall, logger *slog.Logger) (llm.Message, ToolUse, error) {
	name := call.Function.Name

	desc, ok := cat.Resolve(name)
	if !ok {
		detail := "unknown tool " + name
		o.emitter.Emit(events.Event{Name: events.ToolCallFailed, Tool: name, Detail: detail})
		return toolMessage(call.ID, "Error: "+detail),
			ToolUse{Tool: name, Status: "error", Detail: detail}, nil
	}

	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			detail := "invalid tool arguments: " + err.Error()
			o.emitter.Emit(events.Event{Name: events.ToolCallFailed, Tool: name, Server: desc.Server, Detail: detail})
			return toolMessage(call.ID, "Error: "+detail),
				ToolUse{Tool: name, Server: desc.Server, Status: "error", Detail: detail}, nil
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	if detail := validateArgs(desc.InputSchema, args); detail != "" {
		o.emitter.Emit(events.Event{Name: events.ToolCallFailed, Tool: name, Server: desc.Server, Detail: detail})
		return toolMessage(call.ID, "Error: "+detail),
			ToolUse{Tool: name, Server: desc.Server, Arguments: args, Status: "error", Detail: detail}, nil
	}

	sess, err := o.pool.Lease(ctx, desc.Server)
	if err != nil {
		switch errkind.KindOf(err) {
		case errkind.PoolExhausted, errkind.CircuitOpen:
			return llm.Message{}, ToolUse{Tool: name, Server: desc.Server, Arguments: args, Status: "error", Detail: err.Error()}, err
		}
		detail := "session unavailable: " + err.Error()
		o.emitter.Emit(events.Event{Name: events.ToolCallFailed, Tool: name, Server: desc.Server, Detail: detail})
		return toolMessage(call.ID, "Error: "+detail),
			ToolUse{Tool: name, Server: desc.Server, Arguments: args, Status: "error", Detail: detail}, nil
	}

	result, callErr := sess.Transport.Call(ctx, desc.Original, args)
	o.pool.Return(desc.Server, sess, callErr)
	if callErr != nil {
		detail := callErr.Error()
		o.emitter.Emit(events.Event{Name: events.ToolCallFailed, Tool: name, Server: desc.Server, Detail: detail})
		logger.Warn("tool call failed", "tool", name, "server", desc.Server, "error", callErr)
		return toolMessage(call.ID, "Error: "+detail),
			ToolUse{Tool: name, Server: desc.Server, Arguments: args, Status: "error", Detail: detail}, nil
	}

	o.emitter.Emit(events.Event{Name: events.ToolCallSucceeded, Tool: name, Server: desc.Server})
	logger.Info("tool call succeeded", "tool", name, "server", desc.Server)
	return toolMessage(call.ID, result),
		ToolUse{Tool: name, Server: desc.Server, Arguments: args, Status: "success", Result: result}, nil
}

// validateArgs checks the arguments against the tool's input schema and
// returns a human-readable problem description, or "" when valid. A missing
// or unparseable schema skips validation rather than blocking the call.
func validateArgs(schema json.RawMessage, args map[string]any) string {
	if len(schema) == 0 {
		return ""
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return ""
	}
	if result.Valid() {
		return ""
	}
	detail := "arguments failed validation"
	for _, desc := range result.Errors() {
		detail += ": " + desc.String()
		break
	}
	return detail
}

func toolMessage(callID, content string) llm.Message {
	return llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: callID}
}

func (o *Orchestrator) fail(requestID string, trace []ToolUse, start time.Time, err error) *Response {
	if trace == nil {
		trace = []ToolUse{}
	}
	return &Response{
		RequestID: requestID,
		ToolsUsed: trace,
		Status:    "error",
		Error:     err.Error(),
		Elapsed:   time.Since(start),
		ElapsedMS: time.Since(start).Milliseconds(),
	}
}
