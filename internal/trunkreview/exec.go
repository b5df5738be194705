package trunkreview

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/validate"
)

// Script commands accepted by Exec.
const (
	StepCreate        = "create"
	StepReply         = "reply"
	StepStartDraft    = "start-draft"
	StepFinishDraft   = "finish-draft"
	StepEdit          = "edit"
	StepDelete        = "delete"
	StepDeleteComment = "delete-comment"
)

// Step is one command of an exec script. Thread may be "$N" to refer to the
// thread produced by the Nth step.
type Step struct {
	Command string `json:"command"`
	Thread  string `json:"thread,omitempty"`
	File    string `json:"file,omitempty"`
	Range   string `json:"range,omitempty"`
	Comment int    `json:"comment,omitempty"`
	Text    string `json:"text,omitempty"`
}

// StepResult reports the outcome of one step.
type StepResult struct {
	Step     int    `json:"step"`
	Command  string `json:"command"`
	Thread   string `json:"thread,omitempty"`
	Comments int    `json:"comments"`
	Draft    bool   `json:"draft,omitempty"`
	Disposed bool   `json:"disposed,omitempty"`
}

// Exec runs steps in order within one session, so drafts can be started and
// finished by the same script. It stops at the first failing step and
// returns the results gathered so far.
func (s *NoteService) Exec(ctx context.Context, steps []Step) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))

	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Command, err)
		}

		target, err := resolveStepTarget(step, results)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		t, err := s.run(ctx, step, target)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Command, err)
		}

		results = append(results, StepResult{
			Step:     i + 1,
			Command:  step.Command,
			Thread:   t.ID,
			Comments: len(t.Comments),
			Draft:    t.IsDraft(),
			Disposed: t.Disposed(),
		})
	}

	return results, nil
}

// Validate checks that the step names a known command and carries the
// fields that command needs.
func (s Step) Validate() error {
	var text, comment error

	switch s.Command {
	case StepCreate, StepReply, StepStartDraft:
		text = validate.CommentTextField("text", s.Text)
	case StepEdit:
		text = validate.CommentTextField("text", s.Text)
		comment = validate.CommentNumberField("comment", s.Comment)
	case StepDeleteComment:
		comment = validate.CommentNumberField("comment", s.Comment)
	case StepFinishDraft, StepDelete:
	default:
		return criterio.NewFieldErrors("command", fmt.Errorf("unknown command %q", s.Command))
	}

	return criterio.ValidateStruct(text, comment)
}

func (s *NoteService) run(ctx context.Context, step Step, target Target) (*review.Thread, error) {
	switch step.Command {
	case StepCreate:
		return s.Create(ctx, target, step.Text)
	case StepReply:
		return s.Reply(ctx, target, step.Text)
	case StepStartDraft:
		return s.StartDraft(ctx, target, step.Text)
	case StepFinishDraft:
		return s.FinishDraft(ctx, target, step.Text)
	case StepEdit:
		return s.Edit(ctx, target, step.Text)
	case StepDelete:
		return s.Delete(ctx, target)
	case StepDeleteComment:
		return s.DeleteComment(ctx, target)
	default:
		return nil, fmt.Errorf("unknown command %q", step.Command)
	}
}

func resolveStepTarget(step Step, results []StepResult) (Target, error) {
	target := Target{
		Thread:  step.Thread,
		File:    step.File,
		Range:   step.Range,
		Comment: step.Comment,
	}

	ref, ok := strings.CutPrefix(step.Thread, "$")
	if !ok {
		return target, nil
	}

	n, err := strconv.Atoi(ref)
	if err != nil || n < 1 || n > len(results) {
		return Target{}, fmt.Errorf("invalid step reference %q", step.Thread)
	}
	target.Thread = results[n-1].Thread
	return target, nil
}
