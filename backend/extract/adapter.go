// Package extract turns free-form user messages into typed facts by way
// of the model provider, enforcing shape conformance before anything is
// written to the fact store.
package extract

import (
	"context"
	"log/slog"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/flow"
	"github.com/intentlabs/transformd/backend/model"
	"github.com/intentlabs/transformd/backend/phase"
	"github.com/intentlabs/transformd/shared/fault"
)

// Rejection records a single extracted value that did not make it into
// the store, with a human-readable reason.
type Rejection struct {
	Key    string
	Reason string
}

// Result reports the outcome of applying one message against the
// currently missing requirements.
type Result struct {
	// Applied lists facts written to the store, in requirement order.
	Applied []fact.Fact
	// Rejected lists values dropped for shape mismatch or confidence
	// downgrade. A rejection never aborts the rest of the batch.
	Rejected []Rejection
	// Failed is true when the provider call itself failed. No facts are
	// written in that case and Cause carries the provider error.
	Failed bool
	Cause  error
}

// Adapter mediates between the provider's loose JSON output and the
// strictly typed fact store.
type Adapter struct {
	provider model.Provider
	log      *slog.Logger
}

func NewAdapter(provider model.Provider, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{provider: provider, log: log}
}

// Apply extracts facts for the missing requirements from msg and writes
// the conforming ones into store. Provider failure leaves the store
// untouched and is reported through Result.Failed rather than an error:
// the conversation continues regardless.
func (a *Adapter) Apply(ctx context.Context, msg string, p phase.Phase, missing []flow.Requirement, store *fact.Store) *Result {
	if len(missing) == 0 {
		return &Result{}
	}

	targets := make([]model.TargetKey, 0, len(missing))
	for _, req := range missing {
		targets = append(targets, model.TargetKey{
			Key:         req.Key,
			Description: req.Description,
			Shape:       req.Shape,
		})
	}

	resp, err := a.provider.ExtractFacts(ctx, &model.ExtractRequest{
		Message: msg,
		Phase:   p,
		Targets: targets,
	})
	if err != nil {
		a.log.Warn("fact extraction failed",
			slog.String("phase", p.String()),
			slog.Int("targets", len(targets)),
			slog.String("error", err.Error()))
		return &Result{
			Failed: true,
			Cause:  fault.Wrap(fault.KindExtractionFailed, err, "extracting facts from message"),
		}
	}

	result := &Result{}
	for _, req := range missing {
		extracted, ok := resp.Facts[req.Key]
		if !ok || !extracted.Found {
			continue
		}
		value, conforms := conform(req.Shape, extracted.Value)
		if !conforms {
			a.log.Debug("extracted value rejected",
				slog.String("key", req.Key),
				slog.String("want", string(req.Shape)),
				slog.String("got", string(extracted.Value.Shape)))
			result.Rejected = append(result.Rejected, Rejection{
				Key:    req.Key,
				Reason: "shape mismatch: want " + string(req.Shape) + ", got " + string(extracted.Value.Shape),
			})
			continue
		}

		confidence := clamp(extracted.Confidence)
		if !store.Put(req.Key, value, confidence, p) {
			result.Rejected = append(result.Rejected, Rejection{
				Key:    req.Key,
				Reason: "existing fact has higher confidence",
			})
			continue
		}
		f, _ := store.Get(req.Key)
		result.Applied = append(result.Applied, f)
	}

	if len(result.Applied) > 0 {
		a.log.Info("facts applied",
			slog.String("phase", p.String()),
			slog.Int("applied", len(result.Applied)),
			slog.Int("rejected", len(result.Rejected)))
	}
	return result
}

// conform checks the extracted value against the declared shape. Text
// requirements also accept scalars since a short answer is still prose.
func conform(declared fact.Shape, v fact.Value) (fact.Value, bool) {
	switch declared {
	case fact.ShapeList:
		return v, v.Shape == fact.ShapeList
	case fact.ShapeText:
		if v.Shape == fact.ShapeScalar {
			return fact.TextValue(v.Scalar), true
		}
		return v, v.Shape == fact.ShapeText
	default:
		return v, v.Shape == fact.ShapeScalar
	}
}

func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
