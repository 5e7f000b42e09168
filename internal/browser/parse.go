// internal/browser/parse.go
package browser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/interpreter"
)

// Card markup classes.
const (
	FeedCardSelector       = ".feed-shared-update-v2[data-urn]"
	SearchCardSelector     = ".reusable-search__result-container"
	ConnectionCardSelector = ".mn-connection-card"

	classActorName        = "feed-shared-actor__name"
	classActorNameNew     = "update-components-actor__name"
	classPostDescription  = "feed-shared-update-v2__description"
	classPostText         = "feed-shared-text"
	classPostLinkBox      = "feed-shared-update-v2__update-link-container"
	classResultTitle      = "entity-result__title-text"
	classResultPrimary    = "entity-result__primary-subtitle"
	classResultSecondary  = "entity-result__secondary-subtitle"
	classConnectionName   = "mn-connection-card__name"
	classConnectionLink   = "mn-connection-card__link"
	classConnectionJob    = "mn-connection-card__occupation"
	classConnectionTime   = "time-badge"
	classVisuallyHidden   = "visually-hidden"
	urnAttribute          = "data-urn"
	defaultLinkedInOrigin = "https://www.linkedin.com"
)

// ErrEmptyCard is returned when markup holds no recognisable card.
var ErrEmptyCard = errors.New("card markup has no content")

// ParsePostCard reads a feed card. base resolves relative links and builds
// the fallback post URL.
func ParsePostCard(markup, base string) (schemas.Post, error) {
	root, err := parseFragment(markup)
	if err != nil {
		return schemas.Post{}, err
	}
	card := findFirst(root, func(n *html.Node) bool { return attr(n, urnAttribute) != "" })
	if card == nil {
		return schemas.Post{}, fmt.Errorf("%w: no %s attribute", ErrEmptyCard, urnAttribute)
	}

	urn := attr(card, urnAttribute)
	post := schemas.Post{
		ID:     interpreter.PostID(urn),
		URN:    urn,
		Author: firstText(card, classActorName, classActorNameNew),
		Text:   firstText(card, classPostDescription, classPostText),
	}

	if box := findFirst(card, byClass(classPostLinkBox)); box != nil {
		if a := findFirst(box, byTag("a")); a != nil {
			post.URL = resolveLink(base, attr(a, "href"))
		}
	}
	if post.URL == "" {
		post.URL = fallbackPostURL(base, urn)
	}
	return post, nil
}

// ParseSearchCard reads a people search result.
func ParseSearchCard(markup, base string) (schemas.Profile, error) {
	root, err := parseFragment(markup)
	if err != nil {
		return schemas.Profile{}, err
	}

	p := schemas.Profile{
		Headline: firstText(root, classResultPrimary),
		Company:  firstText(root, classResultSecondary),
	}
	if title := findFirst(root, byClass(classResultTitle)); title != nil {
		if a := findFirst(title, byTag("a")); a != nil {
			p.Name = textOf(a)
			p.URL = profileLink(base, attr(a, "href"))
		}
	}
	return finishProfile(p)
}

// ParseConnectionCard reads a card from the connections list.
func ParseConnectionCard(markup, base string) (schemas.Profile, error) {
	root, err := parseFragment(markup)
	if err != nil {
		return schemas.Profile{}, err
	}

	p := schemas.Profile{
		Name:          firstText(root, classConnectionName),
		Occupation:    firstText(root, classConnectionJob),
		ConnectedTime: firstText(root, classConnectionTime),
	}
	if a := findFirst(root, byClass(classConnectionLink)); a != nil {
		p.URL = profileLink(base, attr(a, "href"))
	}
	return finishProfile(p)
}

func finishProfile(p schemas.Profile) (schemas.Profile, error) {
	if p.Name == "" && p.URL == "" {
		return p, ErrEmptyCard
	}
	if p.Name == "" {
		p.Name = "Unknown"
	}
	p.ID = interpreter.ProfileID(p.URL)
	return p, nil
}

func parseFragment(markup string) (*html.Node, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, ErrEmptyCard
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse card markup: %w", err)
	}
	return doc, nil
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClass(n, class) }
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// firstText returns the rendered text of the first element carrying any of
// classes, trying them in order.
func firstText(root *html.Node, classes ...string) string {
	for _, class := range classes {
		if n := findFirst(root, byClass(class)); n != nil {
			if text := textOf(n); text != "" {
				return text
			}
		}
	}
	return ""
}

// textOf approximates what a reader sees: screen-reader-only spans, scripts
// and styles are skipped, whitespace collapses, and <br> or <p> break lines.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || hasClass(n, classVisuallyHidden) {
				return
			}
			if n.Data == "br" {
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && n.Data == "p" {
			b.WriteByte('\n')
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func resolveLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	baseURL, err := url.Parse(originOr(base))
	if err != nil {
		return ref.String()
	}
	return baseURL.ResolveReference(ref).String()
}

// profileLink resolves href and drops tracking query parameters.
func profileLink(base, href string) string {
	resolved := resolveLink(base, href)
	if resolved == "" {
		return ""
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func fallbackPostURL(base, urn string) string {
	if urn == "" {
		return ""
	}
	return strings.TrimRight(originOr(base), "/") + "/feed/update/" + urn + "/"
}

func originOr(base string) string {
	if strings.TrimSpace(base) == "" {
		return defaultLinkedInOrigin
	}
	return base
}
