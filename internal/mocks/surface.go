package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/executor"
)

// FakeControl is an in-memory executor.Control.
type FakeControl struct {
	mu sync.Mutex

	Name         string
	PressedState bool
	PressedErr   error
	ClickErr     error
	KeysErr      error
	// OnClick runs after a successful click, e.g. to reveal a dropdown.
	OnClick func()

	clicks int
	typed  strings.Builder
	log    *opLog
}

func (c *FakeControl) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.ClickErr != nil {
		err := c.ClickErr
		c.mu.Unlock()
		return err
	}
	c.clicks++
	hook := c.OnClick
	c.mu.Unlock()
	c.log.add("click " + c.Name)
	if hook != nil {
		hook()
	}
	return nil
}

func (c *FakeControl) Pressed(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PressedState, c.PressedErr
}

func (c *FakeControl) SendKeys(ctx context.Context, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.KeysErr != nil {
		return c.KeysErr
	}
	c.typed.WriteString(keys)
	return nil
}

// Clicks returns how often the control was clicked.
func (c *FakeControl) Clicks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clicks
}

// Typed returns every key sent so far.
func (c *FakeControl) Typed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typed.String()
}

type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

// FakeSurface is an in-memory executor.Surface keyed by scope and selector.
type FakeSurface struct {
	mu sync.Mutex

	RevealErr error
	// FindErr, when set, is returned by every Find.
	FindErr error

	controls map[string]*FakeControl
	delayed  map[string]*FakeControl
	log      *opLog
	reveals  int
}

var _ executor.Surface = (*FakeSurface)(nil)

// NewFakeSurface returns an empty surface.
func NewFakeSurface() *FakeSurface {
	return &FakeSurface{
		controls: map[string]*FakeControl{},
		delayed:  map[string]*FakeControl{},
		log:      &opLog{},
	}
}

func key(scope executor.Scope, query string) string {
	return scope.String() + ":" + query
}

// Add registers a control that Find can see immediately.
func (s *FakeSurface) Add(scope executor.Scope, query string) *FakeControl {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &FakeControl{Name: query, log: s.log}
	s.controls[key(scope, query)] = c
	return c
}

// AddLater registers a control that only appears once WaitFor is called for it.
func (s *FakeSurface) AddLater(scope executor.Scope, query string) *FakeControl {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &FakeControl{Name: query, log: s.log}
	s.delayed[key(scope, query)] = c
	return c
}

// Remove deletes a control.
func (s *FakeSurface) Remove(scope executor.Scope, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.controls, key(scope, query))
}

// Ops returns the ordered interaction log.
func (s *FakeSurface) Ops() []string {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	return append([]string(nil), s.log.ops...)
}

// Reveals counts Reveal calls.
func (s *FakeSurface) Reveals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reveals
}

func (s *FakeSurface) Reveal(ctx context.Context) error {
	s.mu.Lock()
	s.reveals++
	err := s.RevealErr
	s.mu.Unlock()
	s.log.add("reveal")
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *FakeSurface) Find(ctx context.Context, scope executor.Scope, query string) (executor.Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	if c, ok := s.controls[key(scope, query)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", schemas.ErrControlNotFound, key(scope, query))
}

func (s *FakeSurface) WaitFor(ctx context.Context, scope executor.Scope, query string, timeout time.Duration) (executor.Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(scope, query)
	if c, ok := s.controls[k]; ok {
		return c, nil
	}
	if c, ok := s.delayed[k]; ok {
		delete(s.delayed, k)
		s.controls[k] = c
		return c, nil
	}
	return nil, fmt.Errorf("%s after %v: %w", k, timeout, schemas.ErrWaitTimeout)
}
