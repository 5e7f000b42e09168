package humanoid

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// KeySender delivers keystrokes to a focused control.
type KeySender interface {
	SendKeys(ctx context.Context, keys string) error
}

// commonNgrams are typed faster than arbitrary pairs.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// TypeInto sends text one character at a time with a human cadence.
func (h *Humanoid) TypeInto(ctx context.Context, target KeySender, text string) error {
	if err := h.CognitivePause(ctx, 200, 80); err != nil {
		return err
	}

	runes := []rune(text)
	wordLen := 0
	for i, r := range runes {
		if err := h.wait(ctx, h.keyPause(runes, i)); err != nil {
			return err
		}
		if err := target.SendKeys(ctx, string(r)); err != nil {
			return fmt.Errorf("humanoid: failed to send key %q: %w", r, err)
		}
		if err := h.wait(ctx, h.keyHold()); err != nil {
			return err
		}

		if unicode.IsSpace(r) {
			if wordLen > 0 {
				if err := h.wait(ctx, h.wordPause(wordLen)); err != nil {
					return err
				}
			}
			wordLen = 0
		} else {
			wordLen++
		}
	}
	return nil
}

// keyPause is the flight time before runes[index], shortened for common n-grams.
func (h *Humanoid) keyPause(runes []rune, index int) time.Duration {
	factor := 1.0
	if index >= 2 && commonNgrams[strings.ToLower(string(runes[index-2:index+1]))] {
		factor = h.cfg.NgramFactor3
	} else if index >= 1 && commonNgrams[strings.ToLower(string(runes[index-1:index+1]))] {
		factor = h.cfg.NgramFactor2
	}
	if factor <= 0 {
		factor = 1.0
	}

	h.mu.Lock()
	n := h.rng.NormFloat64()
	h.mu.Unlock()

	ms := n*h.cfg.KeyPauseStdDevMs + h.cfg.KeyPauseMeanMs*factor
	ms = math.Max(h.cfg.KeyPauseMinMs*factor, ms)
	if h.cfg.KeyPauseMaxMs > 0 {
		ms = math.Min(h.cfg.KeyPauseMaxMs, ms)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// keyHold is how long a key stays down.
func (h *Humanoid) keyHold() time.Duration {
	h.mu.Lock()
	n := h.rng.NormFloat64()
	h.mu.Unlock()
	ms := math.Max(20, n*h.cfg.KeyHoldStdDevMs+h.cfg.KeyHoldMeanMs)
	return time.Duration(ms * float64(time.Millisecond))
}

// wordPause grows with the length of the word just finished.
func (h *Humanoid) wordPause(wordLen int) time.Duration {
	h.mu.Lock()
	f := h.rng.Float64()
	h.mu.Unlock()
	ms := h.cfg.WordPauseMeanMs + float64(wordLen)*5 + f*80
	return time.Duration(ms * float64(time.Millisecond))
}
