// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// PIIItem is one occurrence to mask in a named source file, as supplied
// by the caller of the apply-masking operation.
type PIIItem struct {
	Filename      string  `json:"filename" yaml:"filename"`
	Type          PiiType `json:"pii_type" yaml:"pii_type"`
	Text          string  `json:"text" yaml:"text"`
	PageIndex     int     `json:"page_index" yaml:"page_index"`
	InstanceIndex int     `json:"instance_index" yaml:"instance_index"`
	BBox          *Rect   `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	FieldText     string  `json:"field_text,omitempty" yaml:"field_text,omitempty"`
	Score         float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// itemWire accepts pageIndex, the spelling analyzer clients send, next to
// page_index.
type itemWire struct {
	plainItem `yaml:",inline"`
	PageAlias *int `json:"pageIndex" yaml:"pageIndex"`
}

type plainItem PIIItem

func (w itemWire) item() (PIIItem, error) {
	it := PIIItem(w.plainItem)
	if w.PageAlias != nil {
		if it.PageIndex != 0 && it.PageIndex != *w.PageAlias {
			return PIIItem{}, fmt.Errorf("item %q: page_index %d and pageIndex %d disagree", it.Text, it.PageIndex, *w.PageAlias)
		}
		it.PageIndex = *w.PageAlias
	}
	return it, nil
}

// UnmarshalJSON decodes an item, taking pageIndex as page_index.
func (it *PIIItem) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := w.item()
	if err != nil {
		return err
	}
	*it = v
	return nil
}

// UnmarshalYAML decodes an item, taking pageIndex as page_index.
func (it *PIIItem) UnmarshalYAML(unmarshal func(any) error) error {
	var w itemWire
	if err := unmarshal(&w); err != nil {
		return err
	}
	v, err := w.item()
	if err != nil {
		return err
	}
	*it = v
	return nil
}

// Occurrence converts the item into a Locator query. The page index is
// always used as a hint.
func (it PIIItem) Occurrence() Occurrence {
	page := it.PageIndex
	return Occurrence{
		Text:          it.Text,
		Type:          it.Type,
		PageHint:      &page,
		BBox:          it.BBox,
		FieldText:     it.FieldText,
		InstanceIndex: it.InstanceIndex,
	}
}

// Entity converts the item into the entity handed to the policy engine.
// A zero score is treated as a confident detection.
func (it PIIItem) Entity() Entity {
	score := it.Score
	if score == 0 {
		score = 1
	}
	e := Entity{
		Text:      it.Text,
		Type:      it.Type,
		Score:     score,
		StartChar: 0,
		EndChar:   len([]rune(it.Text)),
	}
	if it.BBox != nil {
		e.Coordinates = []Coordinate{{PageIndex: it.PageIndex, BBox: *it.BBox, FieldText: it.FieldText}}
	}
	return e
}

// Occurrence is a Locator query for one appearance of an entity.
type Occurrence struct {
	Text          string
	Type          PiiType
	PageHint      *int
	BBox          *Rect
	FieldText     string
	InstanceIndex int
}

// RegionSource records how a region was resolved.
type RegionSource string

const (
	SourceOCR        RegionSource = "ocr"
	SourceTextSearch RegionSource = "text-search"
)

// Region is a page rectangle chosen to represent one occurrence.
type Region struct {
	PageIndex int          `json:"page_index" yaml:"page_index"`
	BBox      Rect         `json:"bbox" yaml:"bbox"`
	Source    RegionSource `json:"source" yaml:"source"`

	// Degraded is set when an OCR bbox had to be clamped to the page.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// LocateReason classifies a LocateFailure.
type LocateReason string

const (
	ReasonNotFound       LocateReason = "not_found"
	ReasonPageOutOfRange LocateReason = "page_out_of_range"
	ReasonEmptyFieldText LocateReason = "empty_field_text"
	ReasonOutOfBounds    LocateReason = "out_of_bounds"
)

// LocateFailure reports that one occurrence could not be resolved.
type LocateFailure struct {
	Reason LocateReason `json:"reason" yaml:"reason"`
	Detail string       `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func (f *LocateFailure) Error() string {
	if f.Detail == "" {
		return "locate: " + string(f.Reason)
	}
	return "locate: " + string(f.Reason) + ": " + f.Detail
}

// Stage is a step of the per-file masking state machine.
type Stage string

const (
	StagePending    Stage = "pending"
	StageLocating   Stage = "locating"
	StageDeciding   Stage = "deciding"
	StageRedacting  Stage = "redacting"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// FileStatus is the terminal state of one file's run.
type FileStatus string

const (
	StatusDone   FileStatus = "done"
	StatusFailed FileStatus = "failed"
)

// EntityOutcome records what happened to one supplied item.
type EntityOutcome struct {
	Item     PIIItem        `json:"item" yaml:"item"`
	Decision *Decision      `json:"decision,omitempty" yaml:"decision,omitempty"`
	Regions  []Region       `json:"regions,omitempty" yaml:"regions,omitempty"`
	Failure  *LocateFailure `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// FileOutcome is the result of masking one source file.
type FileOutcome struct {
	Filename string          `json:"filename" yaml:"filename"`
	Status   FileStatus      `json:"status" yaml:"status"`
	Stage    Stage           `json:"stage,omitempty" yaml:"stage,omitempty"`
	// Reason says why a file failed. A done file carries one only when
	// its artifact masks nothing, see ReasonNothingLocated.
	Reason   string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Artifact string          `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Redacted int             `json:"redacted" yaml:"redacted"`
	Entities []EntityOutcome `json:"entities" yaml:"entities"`
}

// ReasonNothingLocated marks a done file none of whose occurrences were
// located; its artifact is an unmasked copy of the source.
const ReasonNothingLocated = "no occurrences located"

// RunResult is the outcome of one masking run, keyed by filename.
type RunResult struct {
	RunID      string                 `json:"run_id" yaml:"run_id"`
	Actor      string                 `json:"actor,omitempty" yaml:"actor,omitempty"`
	StartedAt  time.Time              `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time              `json:"finished_at" yaml:"finished_at"`
	Files      map[string]FileOutcome `json:"files" yaml:"files"`
}

// Counts returns the number of done and failed files.
func (r RunResult) Counts() (done, failed int) {
	for _, f := range r.Files {
		if f.Status == StatusDone {
			done++
		} else {
			failed++
		}
	}
	return done, failed
}

// Artifacts returns the artifact names of completed files.
func (r RunResult) Artifacts() []string {
	var out []string
	for _, f := range r.Files {
		if f.Status == StatusDone && f.Artifact != "" {
			out = append(out, f.Artifact)
		}
	}
	return SortedSet(out)
}
