// internal/browser/surface_test.go
package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/executor"
)

func TestRefSelector(t *testing.T) {
	assert.Equal(t, `[data-fp-ref="abc"]`, RefSelector("abc"))
}

func TestElementSurface_Find(t *testing.T) {
	ctx := context.Background()

	t.Run("SubjectScope", func(t *testing.T) {
		page := newFakePage()
		page.evaluate = func(string) (interface{}, error) {
			return map[string]interface{}{"detached": false, "ref": "btn-1"}, nil
		}
		s := NewElementSurface(page, "card-1", time.Millisecond)

		ctrl, err := s.Find(ctx, executor.ScopeSubject, "button.like")
		require.NoError(t, err)

		script := page.Scripts()[0]
		assert.Contains(t, script, jsonEncode(RefSelector("card-1")))
		assert.Contains(t, script, `"button.like"`)

		require.NoError(t, ctrl.Click(ctx))
		assert.Equal(t, []string{RefSelector("btn-1")}, page.clicked)
	})

	t.Run("DocumentScope", func(t *testing.T) {
		page := newFakePage()
		page.evaluate = func(string) (interface{}, error) {
			return map[string]interface{}{"ref": "dlg-1"}, nil
		}
		s := NewElementSurface(page, "card-1", time.Millisecond)

		_, err := s.Find(ctx, executor.ScopeDocument, "button[aria-label='Send now']")
		require.NoError(t, err)
		assert.True(t, strings.Contains(page.Scripts()[0], `})("", `), "document lookups pass an empty root")
	})

	t.Run("NotFound", func(t *testing.T) {
		page := newFakePage()
		page.evaluate = func(string) (interface{}, error) {
			return map[string]interface{}{"ref": ""}, nil
		}
		_, err := NewElementSurface(page, "card-1", 0).Find(ctx, executor.ScopeSubject, "button.like")
		assert.ErrorIs(t, err, schemas.ErrControlNotFound)
	})

	t.Run("DetachedCard", func(t *testing.T) {
		page := newFakePage()
		page.evaluate = func(string) (interface{}, error) {
			return map[string]interface{}{"detached": true}, nil
		}
		_, err := NewElementSurface(page, "card-1", 0).Find(ctx, executor.ScopeSubject, "button.like")
		assert.ErrorIs(t, err, schemas.ErrControlNotFound)
		assert.Contains(t, err.Error(), "no longer attached")
	})

	t.Run("EvaluateErrorPassesThrough", func(t *testing.T) {
		page := newFakePage()
		boom := errors.New("target closed")
		page.evaluate = func(string) (interface{}, error) { return nil, boom }
		_, err := NewElementSurface(page, "card-1", 0).Find(ctx, executor.ScopeSubject, "button.like")
		assert.ErrorIs(t, err, boom)
	})
}

func TestElementSurface_WaitFor(t *testing.T) {
	ctx := context.Background()

	t.Run("AppearsLater", func(t *testing.T) {
		page := newFakePage()
		calls := 0
		page.evaluate = func(string) (interface{}, error) {
			calls++
			if calls < 3 {
				return map[string]interface{}{"ref": ""}, nil
			}
			return map[string]interface{}{"ref": "editor-1"}, nil
		}
		s := NewElementSurface(page, "card-1", time.Millisecond)

		ctrl, err := s.WaitFor(ctx, executor.ScopeSubject, ".ql-editor", time.Second)
		require.NoError(t, err)
		require.NoError(t, ctrl.SendKeys(ctx, "hi"))
		assert.Equal(t, "hi", page.typed[RefSelector("editor-1")])
		assert.Equal(t, 3, calls)
	})

	t.Run("TimesOut", func(t *testing.T) {
		page := newFakePage()
		page.evaluate = func(string) (interface{}, error) {
			return map[string]interface{}{"ref": ""}, nil
		}
		s := NewElementSurface(page, "card-1", time.Millisecond)

		_, err := s.WaitFor(ctx, executor.ScopeDocument, ".send-invite__custom-message", 10*time.Millisecond)
		assert.ErrorIs(t, err, schemas.ErrWaitTimeout)
	})

	t.Run("Cancelled", func(t *testing.T) {
		page := newFakePage()
		page.evaluate = func(string) (interface{}, error) {
			return map[string]interface{}{"ref": ""}, nil
		}
		s := NewElementSurface(page, "card-1", 5*time.Millisecond)

		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := s.WaitFor(cctx, executor.ScopeDocument, ".never", time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, schemas.ErrWaitTimeout)
	})
}

func TestElementSurface_Reveal(t *testing.T) {
	page := newFakePage()
	page.evaluate = func(string) (interface{}, error) { return true, nil }
	s := NewElementSurface(page, "card-1", 0)
	require.NoError(t, s.Reveal(context.Background()))
	assert.Contains(t, page.Scripts()[0], "scrollIntoView")

	page.evaluate = func(string) (interface{}, error) { return false, nil }
	assert.ErrorIs(t, s.Reveal(context.Background()), schemas.ErrControlNotFound)
}

func TestElementControl_Click(t *testing.T) {
	ctx := context.Background()

	t.Run("FallsBackToDOMClick", func(t *testing.T) {
		page := newFakePage()
		page.clickErr = errors.New("node not visible")
		page.evaluate = func(script string) (interface{}, error) {
			require.Contains(t, script, "el.click()")
			return true, nil
		}
		ctrl := &elementControl{page: page, ref: "btn-1"}
		assert.NoError(t, ctrl.Click(ctx))
	})

	t.Run("DetachedBeforeClick", func(t *testing.T) {
		page := newFakePage()
		page.clickErr = errors.New("node not visible")
		page.evaluate = func(string) (interface{}, error) { return false, nil }
		ctrl := &elementControl{page: page, ref: "btn-1"}
		assert.ErrorIs(t, ctrl.Click(ctx), schemas.ErrControlNotFound)
	})
}

func TestElementControl_Pressed(t *testing.T) {
	ctx := context.Background()
	page := newFakePage()
	ctrl := &elementControl{page: page, ref: "like-1"}

	page.evaluate = func(string) (interface{}, error) { return true, nil }
	pressed, err := ctrl.Pressed(ctx)
	require.NoError(t, err)
	assert.True(t, pressed)

	page.evaluate = func(string) (interface{}, error) { return false, nil }
	pressed, err = ctrl.Pressed(ctx)
	require.NoError(t, err)
	assert.False(t, pressed)

	page.evaluate = func(string) (interface{}, error) { return nil, nil }
	_, err = ctrl.Pressed(ctx)
	assert.ErrorIs(t, err, schemas.ErrControlNotFound)
}
