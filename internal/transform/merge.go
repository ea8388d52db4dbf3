package transform

import (
	"fmt"

	"github.com/dunamismax/imaginify/internal/domain"
)

// Parameter names a field edit can write.
const (
	ParamPrompt = "prompt"
	ParamTo     = "to"
)

// Merge folds pending into committed and returns the result; neither input is
// modified. A leaf set in pending wins. A subtree present on both sides is
// merged leaf by leaf, and a subtree present only in pending is copied in
// whole. Anything only committed defines is kept.
func Merge(pending domain.Transformations, committed *domain.Transformations) domain.Transformations {
	if committed == nil {
		return pending.Clone()
	}

	out := committed.Clone()
	out.Restore = pick(pending.Restore, out.Restore)
	out.RemoveBackground = pick(pending.RemoveBackground, out.RemoveBackground)
	out.FillBackground = pick(pending.FillBackground, out.FillBackground)

	switch {
	case pending.Remove != nil && out.Remove != nil:
		out.Remove = &domain.ObjectRemoval{
			Prompt:       pick(pending.Remove.Prompt, out.Remove.Prompt),
			RemoveShadow: pick(pending.Remove.RemoveShadow, out.Remove.RemoveShadow),
			Multiple:     pick(pending.Remove.Multiple, out.Remove.Multiple),
		}
	case pending.Remove != nil:
		r := pending.Remove.Clone()
		out.Remove = &r
	}

	switch {
	case pending.Recolor != nil && out.Recolor != nil:
		out.Recolor = &domain.ObjectRecolor{
			Prompt:   pick(pending.Recolor.Prompt, out.Recolor.Prompt),
			To:       pick(pending.Recolor.To, out.Recolor.To),
			Multiple: pick(pending.Recolor.Multiple, out.Recolor.Multiple),
		}
	case pending.Recolor != nil:
		r := pending.Recolor.Clone()
		out.Recolor = &r
	}

	return out
}

func pick[T any](pending, committed *T) *T {
	if pending == nil {
		return committed
	}
	v := *pending
	return &v
}

// SetParam writes value at [kind, param]. Only remove.prompt, recolor.prompt
// and recolor.to are string leaves; any other path is a validation error.
func SetParam(t *domain.Transformations, kind domain.TransformationType, param, value string) error {
	switch {
	case kind == domain.TransformationRemove && param == ParamPrompt:
		if t.Remove == nil {
			t.Remove = &domain.ObjectRemoval{}
		}
		t.Remove.Prompt = domain.String(value)
	case kind == domain.TransformationRecolor && param == ParamPrompt:
		if t.Recolor == nil {
			t.Recolor = &domain.ObjectRecolor{}
		}
		t.Recolor.Prompt = domain.String(value)
	case kind == domain.TransformationRecolor && param == ParamTo:
		if t.Recolor == nil {
			t.Recolor = &domain.ObjectRecolor{}
		}
		t.Recolor.To = domain.String(value)
	default:
		return fmt.Errorf("%w: %s has no parameter %q", domain.ErrValidation, kind, param)
	}
	return nil
}

// ParamForField maps a form field to the parameter it edits.
func ParamForField(field string) string {
	if field == "prompt" {
		return ParamPrompt
	}
	return ParamTo
}

// KindForField maps a form field to the transformation it edits. The color
// field always targets recolor.
func KindForField(sessionKind domain.TransformationType, field string) domain.TransformationType {
	if field == "color" {
		return domain.TransformationRecolor
	}
	return sessionKind
}
