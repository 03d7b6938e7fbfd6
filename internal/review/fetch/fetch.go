package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
	"golang.org/x/net/html"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Fetcher downloads and parses candidate pages.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with a bounded request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the candidate URL and parses it into a snapshot.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, *review.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch candidate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, fmt.Errorf("fetch candidate: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read candidate body: %w", err)
	}

	snapshot, err := Parse(string(body))
	if err != nil {
		return "", nil, err
	}
	return string(body), snapshot, nil
}

// Parse extracts the page snapshot from raw HTML.
func Parse(rawHTML string) (*review.Snapshot, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse candidate html: %w", err)
	}

	snapshot := &review.Snapshot{
		Scripts:     []string{},
		Stylesheets: []string{},
		Buttons:     []review.ButtonInfo{},
		Inputs:      []review.InputInfo{},
		Images:      []review.ImageInfo{},
		Links:       []review.LinkInfo{},
		Headings:    []string{},
		IDs:         []string{},
		LabelFor:    map[string]bool{},
	}
	walk(root, snapshot)
	return snapshot, nil
}

func walk(node *html.Node, snapshot *review.Snapshot) {
	if node.Type == html.ElementNode {
		collectElement(node, snapshot)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walk(child, snapshot)
	}
}

func collectElement(node *html.Node, snapshot *review.Snapshot) {
	if id := attr(node, "id"); id != "" {
		snapshot.IDs = append(snapshot.IDs, id)
	}

	switch node.Data {
	case "title":
		snapshot.Title = strings.TrimSpace(textContent(node))
	case "script":
		src := attr(node, "src")
		if src == "" {
			src = "inline"
		}
		snapshot.Scripts = append(snapshot.Scripts, src)
		snapshot.Counts.Scripts++
	case "link":
		if strings.EqualFold(attr(node, "rel"), "stylesheet") {
			snapshot.Stylesheets = append(snapshot.Stylesheets, attr(node, "href"))
			snapshot.Counts.Stylesheets++
		}
	case "button":
		snapshot.Buttons = append(snapshot.Buttons, review.ButtonInfo{
			ID:        attr(node, "id"),
			Text:      strings.TrimSpace(textContent(node)),
			AriaLabel: attr(node, "aria-label"),
		})
		snapshot.Counts.Buttons++
	case "input":
		inputType := attr(node, "type")
		if inputType == "" {
			inputType = "text"
		}
		snapshot.Inputs = append(snapshot.Inputs, review.InputInfo{
			ID:   attr(node, "id"),
			Type: inputType,
			Name: attr(node, "name"),
		})
		snapshot.Counts.Inputs++
	case "img":
		snapshot.Images = append(snapshot.Images, review.ImageInfo{
			Src: attr(node, "src"),
			Alt: attr(node, "alt"),
		})
		snapshot.Counts.Images++
	case "a":
		snapshot.Links = append(snapshot.Links, review.LinkInfo{
			Href:     attr(node, "href"),
			Text:     strings.TrimSpace(textContent(node)),
			HasImage: hasChildElement(node, "img"),
		})
		snapshot.Counts.Links++
	case "form":
		snapshot.Counts.Forms++
	case "label":
		if target := attr(node, "for"); target != "" {
			snapshot.LabelFor[target] = true
		}
	case "h1", "h2", "h3":
		if text := strings.TrimSpace(textContent(node)); text != "" {
			snapshot.Headings = append(snapshot.Headings, text)
		}
	}
}

func attr(node *html.Node, name string) string {
	for _, a := range node.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(node *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(node)
	return sb.String()
}

func hasChildElement(node *html.Node, tag string) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == tag {
			return true
		}
		if hasChildElement(child, tag) {
			return true
		}
	}
	return false
}
