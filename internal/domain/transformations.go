package domain

import (
	"fmt"
	"sort"
	"strings"
)

type TransformationType string

const (
	TransformationRestore          TransformationType = "restore"
	TransformationRemoveBackground TransformationType = "removeBackground"
	TransformationFill             TransformationType = "fill"
	TransformationRemove           TransformationType = "remove"
	TransformationRecolor          TransformationType = "recolor"
)

// Transformations is the parameter tree handed to the CDN. Leaves are
// pointers so that "unset" can be told apart from a zero value when pending
// edits are merged into a committed configuration.
type Transformations struct {
	Restore          *bool          `json:"restore,omitempty" bson:"restore,omitempty"`
	RemoveBackground *bool          `json:"removeBackground,omitempty" bson:"removeBackground,omitempty"`
	FillBackground   *bool          `json:"fillBackground,omitempty" bson:"fillBackground,omitempty"`
	Remove           *ObjectRemoval `json:"remove,omitempty" bson:"remove,omitempty"`
	Recolor          *ObjectRecolor `json:"recolor,omitempty" bson:"recolor,omitempty"`
}

type ObjectRemoval struct {
	Prompt       *string `json:"prompt,omitempty" bson:"prompt,omitempty"`
	RemoveShadow *bool   `json:"removeShadow,omitempty" bson:"removeShadow,omitempty"`
	Multiple     *bool   `json:"multiple,omitempty" bson:"multiple,omitempty"`
}

type ObjectRecolor struct {
	Prompt   *string `json:"prompt,omitempty" bson:"prompt,omitempty"`
	To       *string `json:"to,omitempty" bson:"to,omitempty"`
	Multiple *bool   `json:"multiple,omitempty" bson:"multiple,omitempty"`
}

// TransformationInfo describes a transformation kind as presented to users.
type TransformationInfo struct {
	Type     TransformationType `json:"type"`
	Title    string             `json:"title"`
	SubTitle string             `json:"sub_title"`
	Config   Transformations    `json:"config"`
}

var transformationCatalog = map[TransformationType]TransformationInfo{
	TransformationRestore: {
		Type:     TransformationRestore,
		Title:    "Restore Image",
		SubTitle: "Refine images by removing noise and imperfections",
		Config:   Transformations{Restore: Bool(true)},
	},
	TransformationRemoveBackground: {
		Type:     TransformationRemoveBackground,
		Title:    "Background Remove",
		SubTitle: "Removes the background of the image using AI",
		Config:   Transformations{RemoveBackground: Bool(true)},
	},
	TransformationFill: {
		Type:     TransformationFill,
		Title:    "Generative Fill",
		SubTitle: "Enhance an image's dimensions using AI outpainting",
		Config:   Transformations{FillBackground: Bool(true)},
	},
	TransformationRemove: {
		Type:     TransformationRemove,
		Title:    "Object Remove",
		SubTitle: "Identify and eliminate objects from images",
		Config: Transformations{Remove: &ObjectRemoval{
			Prompt:       String(""),
			RemoveShadow: Bool(true),
			Multiple:     Bool(true),
		}},
	},
	TransformationRecolor: {
		Type:     TransformationRecolor,
		Title:    "Object Recolor",
		SubTitle: "Identify and recolor objects from the image",
		Config: Transformations{Recolor: &ObjectRecolor{
			Prompt:   String(""),
			To:       String(""),
			Multiple: Bool(true),
		}},
	},
}

func ParseTransformationType(raw string) (TransformationType, error) {
	kind := TransformationType(strings.TrimSpace(raw))
	if _, ok := transformationCatalog[kind]; !ok {
		return "", fmt.Errorf("%w: unsupported transformation type %q", ErrValidation, raw)
	}
	return kind, nil
}

func (t TransformationType) Valid() bool {
	_, ok := transformationCatalog[t]
	return ok
}

// Info returns the catalog entry for t. The embedded default config is a
// fresh copy and may be modified by the caller.
func (t TransformationType) Info() (TransformationInfo, bool) {
	info, ok := transformationCatalog[t]
	if !ok {
		return TransformationInfo{}, false
	}
	info.Config = info.Config.Clone()
	return info, true
}

// DefaultConfig returns the baseline parameters for t, or an empty tree for
// an unknown kind.
func (t TransformationType) DefaultConfig() Transformations {
	info, ok := t.Info()
	if !ok {
		return Transformations{}
	}
	return info.Config
}

func TransformationCatalog() []TransformationInfo {
	out := make([]TransformationInfo, 0, len(transformationCatalog))
	for kind := range transformationCatalog {
		info, _ := kind.Info()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func (t Transformations) IsZero() bool {
	return t.Restore == nil &&
		t.RemoveBackground == nil &&
		t.FillBackground == nil &&
		t.Remove == nil &&
		t.Recolor == nil
}

// Clone returns a deep copy; no pointer is shared with t.
func (t Transformations) Clone() Transformations {
	out := Transformations{
		Restore:          cloneBool(t.Restore),
		RemoveBackground: cloneBool(t.RemoveBackground),
		FillBackground:   cloneBool(t.FillBackground),
	}
	if t.Remove != nil {
		r := t.Remove.Clone()
		out.Remove = &r
	}
	if t.Recolor != nil {
		r := t.Recolor.Clone()
		out.Recolor = &r
	}
	return out
}

func (r ObjectRemoval) Clone() ObjectRemoval {
	return ObjectRemoval{
		Prompt:       cloneString(r.Prompt),
		RemoveShadow: cloneBool(r.RemoveShadow),
		Multiple:     cloneBool(r.Multiple),
	}
}

func (r ObjectRecolor) Clone() ObjectRecolor {
	return ObjectRecolor{
		Prompt:   cloneString(r.Prompt),
		To:       cloneString(r.To),
		Multiple: cloneBool(r.Multiple),
	}
}

func Bool(v bool) *bool { return &v }

func String(v string) *string { return &v }

// Deref returns the pointed-to value or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	return Bool(*p)
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	return String(*p)
}
