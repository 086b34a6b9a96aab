package touchgal

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/command"
)

// ParseDetails scrapes a game page: the linked VNDB id (when present), the
// page title, the introduction paragraphs and the gallery image URLs.
func ParseDetails(pageHTML string) (*Details, error) {
	root, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, apierr.Wrap(apierr.EmptyResponse, err)
	}

	d := &Details{}

	// The external-link grid lists the VNDB entry last.
	if grid := findByClass(root, "div", "grid"); grid != nil {
		anchors := collect(grid, "a")
		if len(anchors) > 0 {
			last := strings.TrimSpace(text(anchors[len(anchors)-1]))
			if command.IDKind(last) != "" {
				d.VNDBID = last
			}
		}
	}
	if d.VNDBID == "" {
		if h1 := findByClass(root, "h1", "text-2xl"); h1 != nil {
			d.Title = strings.TrimSpace(text(h1))
		}
	}

	prose := findByClass(root, "div", "kun-prose")
	if prose == nil {
		return nil, apierr.New(apierr.EmptyResponse)
	}

	var paragraphs []string
	for c := prose.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "p" {
			if t := strings.TrimSpace(text(c)); t != "" {
				paragraphs = append(paragraphs, t)
			}
		}
	}
	d.Description = strings.Join(paragraphs, "\n")

	if gallery := findByClass(prose, "div", "data-kun-img-container"); gallery != nil {
		for _, img := range collect(gallery, "img") {
			if src := attr(img, "src"); src != "" {
				d.Images = append(d.Images, src)
			}
		}
	}

	return d, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func findByClass(n *html.Node, tag, class string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func collect(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	if n.Type == html.ElementNode && n.Data == tag {
		out = append(out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, collect(c, tag)...)
	}
	return out
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(text(c))
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
