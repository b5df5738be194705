package trunkreview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/trunkreview/internal/commenting"
	"github.com/colonyops/trunkreview/internal/core/identity"
	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/validate"
	"github.com/colonyops/trunkreview/internal/core/workspace"
)

// Target addresses a thread by ID (or unique ID prefix), or by file and
// range. Comment is a 1-based index into the thread's comments.
type Target struct {
	Thread  string
	File    string
	Range   string
	Comment int
}

// NoteService runs comment commands against the live threads of one
// workspace through the comment controller.
type NoteService struct {
	root        string
	ctrl        *commenting.Controller
	identity    *identity.Resolver
	identityTTL time.Duration

	openOnce sync.Once
	openErr  error
}

// NewNoteService creates a NoteService. identityWait bounds how long the
// first command waits for the author identity before using the placeholder.
func NewNoteService(root string, ctrl *commenting.Controller, resolver *identity.Resolver, identityWait time.Duration) *NoteService {
	return &NoteService{
		root:        root,
		ctrl:        ctrl,
		identity:    resolver,
		identityTTL: identityWait,
	}
}

// open loads the workspace once. Folders without review files are rejected
// so that comments are never silently dropped at exit.
func (s *NoteService) open(ctx context.Context) error {
	s.openOnce.Do(func() {
		if s.identity != nil {
			s.identity.Start(ctx)
			waitCtx, cancel := context.WithTimeout(ctx, s.identityTTL)
			if err := s.identity.Wait(waitCtx); err != nil {
				log.Debug().Err(err).Msg("using placeholder identity")
			}
			cancel()
		}

		if _, err := s.ctrl.OpenFolder(ctx, s.root); err != nil {
			s.openErr = err
			return
		}
		if s.ctrl.State(s.root) == commenting.FolderDisabled {
			s.openErr = fmt.Errorf("%w: run 'trunkreview init' first", review.ErrDisabled)
		}
	})
	return s.openErr
}

// Sync waits for every write issued so far.
func (s *NoteService) Sync(ctx context.Context) error {
	return s.ctrl.Sync(ctx)
}

// Create starts a new thread at the target's file and range with text as
// its first comment. An existing thread at the same range is left alone.
func (s *NoteService) Create(ctx context.Context, target Target, text string) (*review.Thread, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	if err := requireText(text); err != nil {
		return nil, err
	}

	file, rng, err := s.anchor(target)
	if err != nil {
		return nil, err
	}

	t := s.ctrl.CreateThread(s.root, file, rng)
	s.ctrl.CreateNote(ctx, commenting.Reply{Thread: t, Text: text})
	return t, nil
}

// Reply appends text to the target thread.
func (s *NoteService) Reply(ctx context.Context, target Target, text string) (*review.Thread, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	if err := requireText(text); err != nil {
		return nil, err
	}

	t, err := s.thread(target)
	if err != nil {
		return nil, err
	}

	s.ctrl.ReplyNote(ctx, commenting.Reply{Thread: t, Text: text})
	return t, nil
}

// StartDraft stages text as a pending comment, creating the thread when the
// target names a file and range with no thread yet. Drafts live only as
// long as the process.
func (s *NoteService) StartDraft(ctx context.Context, target Target, text string) (*review.Thread, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	if err := requireText(text); err != nil {
		return nil, err
	}

	t, err := s.thread(target)
	if errors.Is(err, review.ErrThreadNotFound) && target.Thread == "" {
		file, rng, aerr := s.anchor(target)
		if aerr != nil {
			return nil, aerr
		}
		t, err = s.ctrl.CreateThread(s.root, file, rng), nil
	}
	if err != nil {
		return nil, err
	}

	s.ctrl.StartDraft(ctx, commenting.Reply{Thread: t, Text: text})
	return t, nil
}

// FinishDraft ends the target thread's draft. A non-empty text is added as
// a final comment and the thread persisted.
func (s *NoteService) FinishDraft(ctx context.Context, target Target, text string) (*review.Thread, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	t, err := s.thread(target)
	if err != nil {
		return nil, err
	}

	s.ctrl.FinishDraft(ctx, commenting.Reply{Thread: t, Text: text})
	return t, nil
}

// Edit replaces the text of one comment and saves it.
func (s *NoteService) Edit(ctx context.Context, target Target, text string) (*review.Thread, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	if err := requireText(text); err != nil {
		return nil, err
	}

	t, cm, err := s.comment(target)
	if err != nil {
		return nil, err
	}

	s.ctrl.EditNote(ctx, cm)
	s.ctrl.UpdateText(ctx, cm, text)
	s.ctrl.SaveNote(ctx, cm)
	return t, nil
}

// Delete resolves the whole target thread.
func (s *NoteService) Delete(ctx context.Context, target Target) (*review.Thread, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	t, err := s.thread(target)
	if err != nil {
		return nil, err
	}

	s.ctrl.DeleteNote(ctx, t)
	return t, nil
}

// DeleteComment removes one comment. Removing the last one resolves the thread.
func (s *NoteService) DeleteComment(ctx context.Context, target Target) (*review.Thread, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}

	t, cm, err := s.comment(target)
	if err != nil {
		return nil, err
	}

	s.ctrl.DeleteNoteComment(ctx, cm)
	return t, nil
}

// anchor resolves the target's file and range.
func (s *NoteService) anchor(target Target) (string, review.Range, error) {
	if target.File == "" || target.Range == "" {
		return "", review.Range{}, errors.New("a file and range are required")
	}

	file, err := workspace.Rel(s.root, target.File)
	if err != nil {
		return "", review.Range{}, err
	}

	rng, err := workspace.ParseRange(target.Range)
	if err != nil {
		return "", review.Range{}, err
	}
	return file, rng, nil
}

// thread resolves the target to a live thread.
func (s *NoteService) thread(target Target) (*review.Thread, error) {
	if target.Thread != "" {
		if t, ok := s.ctrl.Thread(target.Thread); ok {
			return t, nil
		}

		var matches []*review.Thread
		for _, t := range s.ctrl.Threads(s.root) {
			if strings.HasPrefix(t.ID, target.Thread) {
				matches = append(matches, t)
			}
		}

		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%q: %w", target.Thread, review.ErrThreadNotFound)
		case 1:
			return matches[0], nil
		default:
			return nil, fmt.Errorf("%q matches %d threads: %w", target.Thread, len(matches), ErrAmbiguousID)
		}
	}

	file, rng, err := s.anchor(target)
	if err != nil {
		return nil, err
	}

	t, ok := s.ctrl.ThreadAt(s.root, file, rng)
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", file, rng, review.ErrThreadNotFound)
	}
	return t, nil
}

// comment resolves the target to a thread and one of its comments.
func (s *NoteService) comment(target Target) (*review.Thread, *review.Comment, error) {
	t, err := s.thread(target)
	if err != nil {
		return nil, nil, err
	}

	if target.Comment < 1 || target.Comment > len(t.Comments) {
		return nil, nil, fmt.Errorf("comment %d of %d: %w", target.Comment, len(t.Comments), review.ErrCommentNotFound)
	}
	return t, t.Comments[target.Comment-1], nil
}

func requireText(text string) error {
	return validate.CommentText(text)
}
