package campaign

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/interpreter"
	"github.com/xkilldash9x/feedpilot/internal/llmutil"
)

// DefaultMessageTemplates is used when no message template file exists.
var DefaultMessageTemplates = []string{
	"Hi {{name}}, I hope you're doing well! Let's connect and chat about opportunities.",
}

// DefaultNoteTemplates personalise connection requests.
var DefaultNoteTemplates = []string{
	"Hi {{first_name}}, I noticed your profile while browsing LinkedIn and thought we could connect. Looking forward to sharing insights about our industries!",
	"Hello {{first_name}}, I'm expanding my professional network and would love to connect with you. Hope to learn from your experience in {{headline}}.",
	"Hi {{first_name}}, I came across your profile and was impressed by your experience at {{company}}. I'd be glad to connect with you.",
}

// NoteMaxLength is the longest invitation note the site accepts.
const NoteMaxLength = 300

// LoadTemplates reads one template per non-blank line. A missing or empty
// file yields defaults.
func LoadTemplates(path string, defaults []string, logger *zap.Logger) []string {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Could not read templates; using defaults.", zap.String("path", path), zap.Error(err))
		}
		return defaults
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Template file truncated.", zap.String("path", path), zap.Error(err))
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithRefiner polishes composed text through the model.
func WithRefiner(llm schemas.LLMClient, timeout time.Duration) ComposerOption {
	return func(c *Composer) {
		c.llm = llm
		c.refineTimeout = timeout
	}
}

// WithComposerRand fixes template selection.
func WithComposerRand(rng *rand.Rand) ComposerOption {
	return func(c *Composer) { c.rng = rng }
}

// WithMaxLength truncates composed text to n runes.
func WithMaxLength(n int) ComposerOption {
	return func(c *Composer) { c.maxLength = n }
}

// Composer turns a template and a profile into outreach text.
type Composer struct {
	templates     []string
	logger        *zap.Logger
	llm           schemas.LLMClient
	refineTimeout time.Duration
	maxLength     int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewComposer creates a Composer over templates.
func NewComposer(templates []string, logger *zap.Logger, opts ...ComposerOption) *Composer {
	c := &Composer{
		templates: templates,
		logger:    logger.Named("composer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(c.templates) == 0 {
		c.templates = DefaultMessageTemplates
	}
	return c
}

// Compose picks a template, personalises it and optionally refines it.
func (c *Composer) Compose(ctx context.Context, p schemas.Profile) string {
	c.mu.Lock()
	tmpl := c.templates[c.rng.Intn(len(c.templates))]
	c.mu.Unlock()

	text := Personalize(tmpl, p)
	if c.llm != nil {
		text = c.Refine(ctx, text)
	}
	return c.truncate(text)
}

// Refine asks the model to polish text. Any failure returns text unchanged.
func (c *Composer) Refine(ctx context.Context, text string) string {
	if c.llm == nil {
		return text
	}
	if c.refineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.refineTimeout)
		defer cancel()
	}

	refined, err := c.llm.Generate(ctx, interpreter.BuildRefinePrompt(text))
	if err != nil {
		c.logger.Warn("Refinement failed; sending the template text.", zap.Error(err))
		return text
	}
	refined = llmutil.CleanReply(refined)
	c.logger.Debug("Refined message.", zap.String("reply", llmutil.Truncate(refined, 200)))
	if refined == "" {
		c.logger.Warn("Refinement was empty; sending the template text.")
		return text
	}
	return refined
}

func (c *Composer) truncate(text string) string {
	if c.maxLength <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= c.maxLength {
		return text
	}
	return strings.TrimSpace(string(r[:c.maxLength]))
}

// Personalize substitutes profile fields into a template.
func Personalize(tmpl string, p schemas.Profile) string {
	return strings.NewReplacer(
		"{{name}}", orDefault(p.Name, "there"),
		"{{first_name}}", orDefault(p.FirstName(), "there"),
		"{{headline}}", orDefault(p.Headline, "your field"),
		"{{company}}", orDefault(p.Company, "your company"),
		"{{occupation}}", orDefault(p.Occupation, "your field"),
	).Replace(tmpl)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
