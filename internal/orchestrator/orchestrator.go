// Package orchestrator runs the per-conversation turn loop: context
// assembly, generation with local fallback, the repetition guard, the
// periodic moderator, and the final atomic commit plus memory ingest.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"colloquy/internal/config"
	"colloquy/internal/extract"
	"colloquy/internal/llm"
	"colloquy/internal/memory"
	"colloquy/internal/prompt"
	"colloquy/internal/store"
)

// Stop reasons are part of the wire contract; never rename.
const (
	StopMaxTurns        = "max_turns"
	StopTimeLimit       = "time_limit"
	StopRepetitionGuard = "repetition_guard"
	StopDoneToken       = "done_token"
	StopModeratorDone   = "moderator_done"
)

const (
	minTurns            = 2
	maxTurns            = 10
	turnWords           = 120
	turnTimeout         = 15 * time.Second
	similarityThreshold = 0.90
)

// ErrMissingTopic rejects requests that name neither an existing
// conversation nor a topic.
var ErrMissingTopic = errors.New("topic is required for a new conversation")

var doneRe = regexp.MustCompile(`(?i)^\s*done\b[\s:-]*`)

// Request describes one dialogue run. Exactly one of ConversationID
// (continue) or Topic (start fresh) is required; Turns outside [2,10]
// is clamped and zero means the maximum.
type Request struct {
	ConversationID string `json:"conversationId"`
	Topic          string `json:"topic"`
	Turns          int    `json:"turns"`
}

// Result is returned after the batch is committed and ingested.
type Result struct {
	ConversationID string            `json:"conversationId"`
	Topic          string            `json:"topic"`
	NewEntries     []store.Message   `json:"newEntries"`
	TotalTurns     int               `json:"totalTurns"`
	StopReason     string            `json:"stopReason"`
	Memory         store.MemoryStats `json:"memory"`
}

// Orchestrator coordinates the store, memory engine and generator for
// all conversations. Safe for concurrent use.
type Orchestrator struct {
	store  store.Store
	engine *memory.Engine
	gen    llm.Generator // nil means every turn uses the local generator
	limits config.Limits
	logger *zap.Logger
	locks  *lockTable
	agents [2]Agent
}

// New creates an orchestrator. gen may be nil.
func New(st store.Store, engine *memory.Engine, gen llm.Generator, limits config.Limits, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:  st,
		engine: engine,
		gen:    gen,
		limits: limits,
		logger: logger,
		locks:  newLockTable(),
		agents: defaultAgents(),
	}
}

// Run executes the turn loop for one request, streaming events to emit
// as it goes. The whole loop plus commit and ingest holds the
// conversation's lock. An emitter failure (client gone) ends the loop
// early but the turns generated so far are still committed and
// ingested.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit Emitter) (*Result, error) {
	convID, topic, err := o.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	turns := clampTurns(req.Turns)

	lock := o.locks.acquire(convID)
	defer lock.Unlock()

	transcript, err := o.store.GetMessages(ctx, convID)
	if err != nil {
		return nil, err
	}
	if err := o.engine.BootstrapIfNeeded(ctx, convID, topic, transcript); err != nil {
		return nil, err
	}
	view, err := o.engine.CompressedView(ctx, convID)
	if err != nil {
		return nil, err
	}

	if err := o.emit(emit, MetaEvent{
		Type:           "meta",
		ConversationID: convID,
		Topic:          topic,
		Engine:         o.engineName(),
		Memory:         view.Stats,
		Charter:        prompt.DefaultCharter,
		Guardrails: Guardrails{
			ModeratorInterval:   o.limits.ModeratorInterval,
			MaxGenerationMs:     o.limits.MaxGenerationMS,
			MaxRepetitionStreak: o.limits.MaxRepetitionStreak,
		},
	}); err != nil {
		return nil, err
	}

	var (
		batch      []store.Message
		directive  = prompt.DefaultDirective
		streak     int
		stopReason = StopMaxTurns
		start      = time.Now()
		deadline   = time.Duration(o.limits.MaxGenerationMS) * time.Millisecond
		emitErr    error
	)

	for i := 0; i < turns; i++ {
		if time.Since(start) > deadline {
			stopReason = StopTimeLimit
			break
		}

		nextTurn := len(transcript) + 1
		agent := o.agents[(nextTurn-1)%2]

		block := prompt.Assemble(prompt.Input{
			Topic:     topic,
			Recent:    transcript,
			View:      view,
			Directive: directive,
		})
		text := o.generateTurn(ctx, agent, block, topic, directive, nextTurn, transcript)

		signaledDone := doneRe.MatchString(text)
		if signaledDone {
			text = doneRe.ReplaceAllString(text, "")
		}

		similarity := 0.0
		if len(transcript) > 0 {
			similarity = extract.Jaccard(transcript[len(transcript)-1].Text, text)
		}
		if len(transcript) > 0 && similarity >= similarityThreshold {
			streak++
		} else {
			streak = 0
		}

		entry := store.Message{Turn: nextTurn, Speaker: agent.Name, SpeakerID: agent.ID, Text: text}
		transcript = append(transcript, entry)
		batch = append(batch, entry)

		if emitErr = o.emit(emit, TurnEvent{
			Type:       "turn",
			Entry:      entry,
			TotalTurns: len(transcript),
			Quality:    Quality{SimilarityToPrevious: similarity, RepetitionStreak: streak},
		}); emitErr != nil {
			break
		}

		if streak >= o.limits.MaxRepetitionStreak {
			stopReason = StopRepetitionGuard
			break
		}
		if signaledDone {
			stopReason = StopDoneToken
			break
		}

		if len(batch)%o.limits.ModeratorInterval == 0 {
			moderation := o.moderate(ctx, convID, topic, transcript, directive)
			directive = moderation.Directive
			if emitErr = o.emit(emit, ModeratorEvent{
				Type:       "moderator",
				Moderation: moderation,
				TotalTurns: len(transcript),
			}); emitErr != nil {
				break
			}
			if moderation.Done {
				stopReason = StopModeratorDone
				break
			}
		}
	}

	if len(batch) > 0 {
		if err := o.store.AppendMessages(ctx, convID, batch); err != nil {
			return nil, fmt.Errorf("commit batch: %w", err)
		}
		if err := o.engine.Ingest(ctx, convID, topic, batch, len(transcript)); err != nil {
			return nil, fmt.Errorf("memory ingest: %w", err)
		}
	}

	stats, err := o.store.GetMemoryStats(ctx, convID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ConversationID: convID,
		Topic:          topic,
		NewEntries:     batch,
		TotalTurns:     len(transcript),
		StopReason:     stopReason,
		Memory:         *stats,
	}

	if emitErr != nil {
		o.logger.Info("Client gone mid-stream, batch committed",
			zap.String("conversation", convID), zap.Int("turns", len(batch)))
		return result, emitErr
	}

	if err := o.emit(emit, DoneEvent{
		Type:           "done",
		ConversationID: convID,
		Topic:          topic,
		Turns:          turns,
		TotalTurns:     result.TotalTurns,
		StopReason:     stopReason,
		Memory:         *stats,
	}); err != nil {
		return result, err
	}
	return result, nil
}

// resolve maps the request onto a conversation: an existing id keeps
// its stored topic; otherwise a fresh conversation needs a topic.
func (o *Orchestrator) resolve(ctx context.Context, req Request) (string, string, error) {
	if req.ConversationID != "" {
		conv, err := o.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return "", "", err
		}
		return conv.ID, conv.Topic, nil
	}
	if req.Topic == "" {
		return "", "", ErrMissingTopic
	}
	id := uuid.NewString()
	conv, err := o.store.CreateConversation(ctx, id, req.Topic)
	if err != nil {
		return "", "", err
	}
	return conv.ID, conv.Topic, nil
}

// generateTurn asks the LLM for the next entry, demoting to the
// deterministic local generator on any failure.
func (o *Orchestrator) generateTurn(ctx context.Context, agent Agent, block, topic, directive string, turn int, transcript []store.Message) string {
	local := llm.Func(func(context.Context, llm.Request) (string, error) {
		return localTurn(topic, directive, turn, agent, transcript), nil
	})
	gen := llm.WithFallback(o.gen, local, o.logger)
	text, err := gen.Generate(ctx, llm.Request{
		System:      agent.System,
		Prompt:      block,
		Temperature: agent.Temperature,
		MaxWords:    turnWords,
		Timeout:     turnTimeout,
	})
	if err != nil {
		// The local generator never fails; this is unreachable unless
		// both paths error, in which case an anchored line still beats
		// an empty turn.
		return localTurn(topic, directive, turn, agent, transcript)
	}
	return text
}

func (o *Orchestrator) emit(emit Emitter, event any) error {
	if emit == nil {
		return nil
	}
	return emit(event)
}

func (o *Orchestrator) engineName() string {
	if o.gen == nil {
		return "local"
	}
	return o.gen.Name()
}

func clampTurns(turns int) int {
	if turns == 0 {
		return maxTurns
	}
	if turns < minTurns {
		return minTurns
	}
	if turns > maxTurns {
		return maxTurns
	}
	return turns
}
