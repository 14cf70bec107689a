package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultModel = "gemini-3-flash-preview"

	generateTemperature float32 = 0.3
	refineTemperature   float32 = 0.4
)

// ErrCredentialRejected is wrapped by Completer implementations when the
// service refuses the credential.
var ErrCredentialRejected = errors.New("credential rejected")

// Request is one call to the text generation service.
type Request struct {
	APIKey            string
	Model             string
	Content           string
	SystemInstruction string
	Temperature       float32
}

// Completer sends a single request to a text generation service and returns
// the generated text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Observer receives the outcome of every call: "ok" or the failure Kind.
type Observer interface {
	ObserveGeneration(op, outcome string, elapsed time.Duration)
}

// Options configures an Adapter.
type Options struct {
	Model             string
	SystemInstruction string
	Timeout           time.Duration
	Observer          Observer
}

// Adapter exposes the three note operations on top of a Completer. It never
// retries and every error it returns is a *Error.
type Adapter struct {
	completer   Completer
	model       string
	instruction string
	timeout     time.Duration
	observer    Observer
	logger      zerolog.Logger
}

func NewAdapter(c Completer, opts Options, logger zerolog.Logger) *Adapter {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	instruction := opts.SystemInstruction
	if instruction == "" {
		instruction = DefaultSystemInstruction()
	}
	return &Adapter{
		completer:   c,
		model:       model,
		instruction: instruction,
		timeout:     opts.Timeout,
		observer:    opts.Observer,
		logger:      logger.With().Str("component", "generation").Logger(),
	}
}

// Generate produces a new note from the payload alone.
func (a *Adapter) Generate(ctx context.Context, credential string, payload any) (string, error) {
	const op = "generate"
	if credential == "" {
		return "", &Error{Kind: KindMissingCredential, Op: op}
	}
	content, err := marshalPayload(payload)
	if err != nil {
		return "", &Error{Kind: KindFailed, Op: op, Err: err}
	}
	return a.call(ctx, op, credential, content, generateTemperature)
}

// RefineFull rewrites the whole note according to instruction and returns
// the replacement document.
func (a *Adapter) RefineFull(ctx context.Context, credential string, payload any, currentNote, instruction string) (string, error) {
	const op = "refine_full"
	if credential == "" {
		return "", &Error{Kind: KindMissingCredential, Op: op}
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return "", &Error{Kind: KindFailed, Op: op, Err: err}
	}
	return a.call(ctx, op, credential, FullRefinePrompt(data, currentNote, instruction), refineTemperature)
}

// RefineSegment rewrites only segment and returns its trimmed replacement.
func (a *Adapter) RefineSegment(ctx context.Context, credential string, payload any, fullNote, segment, instruction string) (string, error) {
	const op = "refine_segment"
	if credential == "" {
		return "", &Error{Kind: KindMissingCredential, Op: op}
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return "", &Error{Kind: KindFailed, Op: op, Err: err}
	}
	out, err := a.call(ctx, op, credential, SegmentRefinePrompt(data, fullNote, segment, instruction), refineTemperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (a *Adapter) call(ctx context.Context, op, credential, content string, temperature float32) (text string, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Str("op", op).Interface("panic", r).Msg("generation transport panicked")
			text, err = "", &Error{Kind: KindFailed, Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
		if a.observer != nil {
			outcome := "ok"
			if err != nil {
				outcome = KindOf(err).String()
			}
			a.observer.ObserveGeneration(op, outcome, time.Since(start))
		}
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	out, cerr := a.completer.Complete(ctx, Request{
		APIKey:            credential,
		Model:             a.model,
		Content:           content,
		SystemInstruction: a.instruction,
		Temperature:       temperature,
	})
	if cerr != nil {
		kind := classify(cerr)
		a.logger.Warn().Err(cerr).Str("op", op).Str("kind", kind.String()).
			Dur("latency", time.Since(start)).Msg("generation failed")
		return "", &Error{Kind: kind, Op: op, Err: cerr}
	}
	if strings.TrimSpace(out) == "" {
		a.logger.Warn().Str("op", op).Msg("generation returned no text")
		return "", &Error{Kind: KindFailed, Op: op, Err: errEmptyResponse}
	}
	a.logger.Debug().Str("op", op).Int("chars", len(out)).
		Dur("latency", time.Since(start)).Msg("generation completed")
	return out, nil
}

func classify(err error) Kind {
	if errors.Is(err, ErrCredentialRejected) {
		return KindInvalidCredential
	}
	if strings.Contains(strings.ToLower(err.Error()), "api key") {
		return KindInvalidCredential
	}
	return KindFailed
}
