package schemas

import (
	"strings"
	"time"
)

// ActionKind identifies one of the interactions tracked by the ledger.
type ActionKind string

const (
	ActionLike       ActionKind = "like"
	ActionComment    ActionKind = "comment"
	ActionConnection ActionKind = "connection"
	ActionMessage    ActionKind = "message"
)

// AllActionKinds lists every tracked kind in ledger document order.
var AllActionKinds = []ActionKind{ActionLike, ActionComment, ActionConnection, ActionMessage}

// Collection returns the key under which entries of this kind are persisted.
func (k ActionKind) Collection() string {
	switch k {
	case ActionLike:
		return "likes"
	case ActionComment:
		return "comments"
	case ActionConnection:
		return "connections"
	case ActionMessage:
		return "messages"
	default:
		return string(k) + "s"
	}
}

// UnknownSubjectID is returned when a subject id cannot be extracted.
const UnknownSubjectID = "unknown"

// NoCommentSentinel is the placeholder a model emits when it has nothing to say.
const NoCommentSentinel = "[N/A]"

// Decision is the normalized recommendation for a single subject.
type Decision struct {
	ShouldLike    bool   `json:"should_like"`
	ShouldComment bool   `json:"should_comment"`
	CommentText   string `json:"comment_text"`
	Reasoning     string `json:"reasoning"`
}

// NoAction returns a decision that takes no action and records why.
func NoAction(reason string) Decision {
	return Decision{Reasoning: reason}
}

// WantsComment reports whether the comment branch should run. A sentinel or
// empty comment text suppresses the comment even if ShouldComment is set.
func (d Decision) WantsComment() bool {
	if !d.ShouldComment {
		return false
	}
	return !IsNoComment(d.CommentText)
}

// IsNoComment reports whether text is empty or one of the "no comment" sentinels.
func IsNoComment(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	return strings.EqualFold(t, NoCommentSentinel) || strings.EqualFold(t, "N/A")
}

// Post is a feed entry produced by the scraper.
type Post struct {
	ID     string `json:"post_id"`
	URN    string `json:"urn"`
	Author string `json:"author_name"`
	Text   string `json:"post_text"`
	URL    string `json:"post_url"`
}

// Profile is a person card produced by the search or connections scrapers.
type Profile struct {
	ID            string `json:"profile_id"`
	Name          string `json:"name"`
	URL           string `json:"profile_url"`
	Headline      string `json:"headline,omitempty"`
	Company       string `json:"company,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	ConnectedTime string `json:"connected_time,omitempty"`
}

// FirstName returns the first whitespace separated token of the display name.
func (p Profile) FirstName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Details flattens the profile into a ledger payload.
func (p Profile) Details() map[string]any {
	d := map[string]any{
		"name":        p.Name,
		"profile_id":  p.ID,
		"profile_url": p.URL,
	}
	if p.Headline != "" {
		d["headline"] = p.Headline
	}
	if p.Company != "" {
		d["company"] = p.Company
	}
	if p.Occupation != "" {
		d["occupation"] = p.Occupation
	}
	if p.ConnectedTime != "" {
		d["connected_time"] = p.ConnectedTime
	}
	return d
}

// ActionResult is the outcome of applying a decision to one subject.
type ActionResult struct {
	SubjectID         string         `json:"subject_id"`
	Liked             bool           `json:"liked"`
	Commented         bool           `json:"commented"`
	CommentText       string         `json:"comment_text,omitempty"`
	LikeSkipReason    string         `json:"like_skip_reason,omitempty"`
	CommentSkipReason string         `json:"comment_skip_reason,omitempty"`
	Errors            []*ActionError `json:"errors,omitempty"`
}

// AddError appends a classified error for the given step.
func (r *ActionResult) AddError(step string, err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, NewActionError(step, err))
}

// ErrorStrings renders the collected errors for summaries.
func (r ActionResult) ErrorStrings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// StopReason explains why a campaign loop ended.
type StopReason string

const (
	StopBudget      StopReason = "budget"
	StopExhausted   StopReason = "exhausted"
	StopBreaker     StopReason = "breaker"
	StopCancelled   StopReason = "cancelled"
	StopDailyLimit  StopReason = "daily_limit"
	StopSourceError StopReason = "source_error"
)

// CampaignReport aggregates the outcome of a connection or messaging campaign.
type CampaignReport struct {
	RunID      string     `json:"run_id"`
	Kind       ActionKind `json:"kind"`
	DryRun     bool       `json:"dry_run"`
	Budget     int        `json:"budget"`
	Sent       int        `json:"sent"`
	Skipped    int        `json:"skipped"`
	Errors     []string   `json:"errors"`
	StopReason StopReason `json:"stop_reason"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// PostOutcome pairs the decision taken for a post with the result of applying it.
type PostOutcome struct {
	Post     Post          `json:"post"`
	Decision Decision      `json:"decision"`
	Result   *ActionResult `json:"result,omitempty"`
	// SkipReason is set when the post was neither decided nor acted on.
	SkipReason string `json:"skip_reason,omitempty"`
}

// FeedReport summarizes a feed run.
type FeedReport struct {
	RunID      string        `json:"run_id"`
	DryRun     bool          `json:"dry_run"`
	Processed  int           `json:"processed"`
	Liked      int           `json:"liked"`
	Commented  int           `json:"commented"`
	Outcomes   []PostOutcome `json:"outcomes"`
	Errors     []string      `json:"errors"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
