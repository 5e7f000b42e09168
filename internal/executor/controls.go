package executor

import "github.com/xkilldash9x/feedpilot/internal/config"

// Controls holds the lookup chains for every feed action.
type Controls struct {
	Like          Chain
	CommentOpen   Chain
	CommentEditor Chain
	CommentSubmit Chain
}

// DefaultControls returns the chains tuned for the current feed markup.
func DefaultControls() Controls {
	return Controls{
		Like: ParseChain([]string{
			"button.react-button__trigger[aria-label^='Like']",
			"button.react-button__trigger[aria-label*='Like']",
			"button[aria-label^='React Like']",
		}),
		CommentOpen: ParseChain([]string{
			"button.comment-button[aria-label^='Comment']",
			"button[aria-label^='Comment']",
		}),
		CommentEditor: ParseChain([]string{
			"div.ql-editor[data-placeholder='Add a comment…']",
			"div.ql-editor[contenteditable='true']",
			"document:div.ql-editor[data-placeholder='Add a comment…']",
		}),
		CommentSubmit: ParseChain([]string{
			"button.comments-comment-box__submit-button",
			"document:button.comments-comment-box__submit-button",
		}),
	}
}

// ControlsFromConfig overlays configured chains on the defaults.
func ControlsFromConfig(sel config.SelectorsConfig) Controls {
	c := DefaultControls()
	if len(sel.Like) > 0 {
		c.Like = ParseChain(sel.Like)
	}
	if len(sel.CommentOpen) > 0 {
		c.CommentOpen = ParseChain(sel.CommentOpen)
	}
	if len(sel.CommentEditor) > 0 {
		c.CommentEditor = ParseChain(sel.CommentEditor)
	}
	if len(sel.CommentSubmit) > 0 {
		c.CommentSubmit = ParseChain(sel.CommentSubmit)
	}
	return c
}
