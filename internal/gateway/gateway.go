// Package gateway is the composition root for message handling: it routes
// inbound text to a guru, executes the task over the worker bridge, and
// relays the reply to the originating channel. It also owns the automation
// registry that scheduled runs draw their task definitions from.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/floguru/gurucore/internal/logger"
	"github.com/floguru/gurucore/internal/router"
	"github.com/floguru/gurucore/internal/scheduler"
)

// DefaultLLMModel is the model name passed to the worker when none is
// configured.
const DefaultLLMModel = "deepseek-v3"

// Executor runs one command against the worker and returns its response.
// The bridge implements this.
type Executor interface {
	Execute(ctx context.Context, command any) (map[string]any, error)
}

// ChannelAdapter delivers an outbound reply on a chat channel.
type ChannelAdapter interface {
	Send(ctx context.Context, channel, to, text string) error
}

// InboundMessage is one message arriving from any channel.
type InboundMessage struct {
	Channel string `json:"channel"`
	From    string `json:"from"`
	Text    string `json:"text"`
}

// Automation is a registered scheduled task owned by a guru.
type Automation struct {
	ID      string
	Name    string
	Guru    router.GuruID
	Task    string
	Trigger scheduler.Trigger
}

// UnknownAutomationError reports an execution request for an id that is not
// registered.
type UnknownAutomationError struct {
	ID string
}

func (e *UnknownAutomationError) Error() string {
	return fmt.Sprintf("unknown automation: %s", e.ID)
}

// Gateway wires the router, executor and channels together.
type Gateway struct {
	log      *logger.Logger
	router   *router.Router
	executor Executor
	llmModel string
	useCloud bool

	mu          sync.RWMutex
	channels    ChannelAdapter
	automations map[string]Automation
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLLMModel overrides the model name sent to the worker.
func WithLLMModel(model string) Option {
	return func(g *Gateway) {
		if model != "" {
			g.llmModel = model
		}
	}
}

// WithCloudExecution makes the worker run tasks against the hosted browser
// backend instead of a local session.
func WithCloudExecution(enabled bool) Option {
	return func(g *Gateway) { g.useCloud = enabled }
}

// New creates a gateway. The channel adapter may be nil when no chat channel
// is configured; replies are then only logged.
func New(log *logger.Logger, rt *router.Router, executor Executor, channels ChannelAdapter, opts ...Option) *Gateway {
	g := &Gateway{
		log:         log,
		router:      rt,
		executor:    executor,
		channels:    channels,
		llmModel:    DefaultLLMModel,
		automations: make(map[string]Automation),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetChannels installs the channel adapter after construction. The telegram
// connector needs the gateway as its message handler, so the two are wired in
// two steps. Safe to call while messages are already flowing.
func (g *Gateway) SetChannels(ch ChannelAdapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels = ch
}

func (g *Gateway) channelAdapter() ChannelAdapter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.channels
}

// Register adds or replaces an automation definition.
func (g *Gateway) Register(a Automation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.automations[a.ID] = a
}

// Remove deletes an automation definition. Unknown ids are a no-op.
func (g *Gateway) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.automations, id)
}

// Automation looks up a registered automation.
func (g *Gateway) Automation(id string) (Automation, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.automations[id]
	return a, ok
}

// HandleMessage runs one inbound message end to end: pick a guru, execute
// the task on the worker, send the reply back on the source channel. The
// reply text is returned for callers without a channel (HTTP).
func (g *Gateway) HandleMessage(ctx context.Context, msg InboundMessage) (string, error) {
	execID := uuid.NewString()
	guru := g.router.Pick(msg.Text)

	g.log.Info("handling message",
		logger.Field{Key: "execution_id", Value: execID},
		logger.Field{Key: "channel", Value: msg.Channel},
		logger.Field{Key: "guru", Value: string(guru.ID)})

	resp, err := g.executor.Execute(ctx, g.command(guru.ID, msg.Text))
	if err != nil {
		messagesTotal.WithLabelValues(string(guru.ID), "error").Inc()
		return "", fmt.Errorf("failed to execute task for %s: %w", guru.ID, err)
	}
	if failure, reason := isFailure(resp); failure {
		messagesTotal.WithLabelValues(string(guru.ID), "error").Inc()
		return "", fmt.Errorf("worker reported failure for %s: %s", guru.ID, reason)
	}
	messagesTotal.WithLabelValues(string(guru.ID), "ok").Inc()

	reply := fmt.Sprintf("%s *%s* – %s", guru.Emoji, guru.ID, replySummary(resp))
	if channels := g.channelAdapter(); channels != nil {
		if err := channels.Send(ctx, msg.Channel, msg.From, reply); err != nil {
			return reply, fmt.Errorf("failed to send reply: %w", err)
		}
	}
	return reply, nil
}

// ExecuteAutomation runs one registered automation. It is the scheduler's
// execution callback.
func (g *Gateway) ExecuteAutomation(ctx context.Context, automationID string) error {
	a, ok := g.Automation(automationID)
	if !ok {
		return &UnknownAutomationError{ID: automationID}
	}

	task := a.Task
	if task == "" {
		task = fmt.Sprintf("Execute based on your mission: %s", a.Name)
	}

	g.log.Info("executing automation",
		logger.Field{Key: "automation_id", Value: a.ID},
		logger.Field{Key: "guru", Value: string(a.Guru)})

	resp, err := g.executor.Execute(ctx, g.command(a.Guru, task))
	if err != nil {
		return fmt.Errorf("automation %s failed: %w", a.ID, err)
	}
	if failure, reason := isFailure(resp); failure {
		return fmt.Errorf("automation %s failed: %s", a.ID, reason)
	}
	return nil
}

func (g *Gateway) command(guru router.GuruID, task string) map[string]any {
	return map[string]any{
		"guru":      string(guru),
		"task":      task,
		"llm":       g.llmModel,
		"use_cloud": g.useCloud,
	}
}

// isFailure interprets the worker's success indicator.
func isFailure(resp map[string]any) (bool, string) {
	ok, isBool := resp["success"].(bool)
	if !isBool || ok {
		return false, ""
	}
	if msg, ok := resp["error"].(string); ok && msg != "" {
		return true, msg
	}
	return true, "no error detail"
}

// replySummary extracts the user-facing line from a worker response: the
// content of the last history entry, falling back to the result field.
func replySummary(resp map[string]any) string {
	if history, ok := resp["history"].([]any); ok && len(history) > 0 {
		if last, ok := history[len(history)-1].(map[string]any); ok {
			if content, ok := last["content"].(string); ok {
				if c := strings.TrimSpace(content); c != "" {
					return c
				}
			}
		}
	}
	if result, ok := resp["result"].(string); ok && result != "" {
		return result
	}
	return "task completed"
}
