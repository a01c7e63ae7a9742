package services

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ContactPageFinder discovers a contact page URL for a website when the job
// record does not carry one. Plain HTTP is tried first; a browser render is
// the fallback for script-heavy sites.
type ContactPageFinder struct {
	Client  *http.Client
	Browser Browser // nil disables the browser fallback
}

func NewContactPageFinder(browser Browser) *ContactPageFinder {
	return &ContactPageFinder{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Browser: browser,
	}
}

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// Find returns an absolute, reachable contact page URL, or "" when none was
// discovered.
func (f *ContactPageFinder) Find(websiteURL string) string {
	if websiteURL == "" {
		return ""
	}
	if parsed, err := url.Parse(websiteURL); err != nil || parsed.Scheme == "" {
		websiteURL = "http://" + websiteURL
	}

	if found := f.findViaHTTP(websiteURL); found != "" {
		return found
	}
	return f.findViaBrowser(websiteURL)
}

func (f *ContactPageFinder) findViaHTTP(websiteURL string) string {
	req, err := http.NewRequest(http.MethodGet, websiteURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		log.Printf("HTTP scrape failed for %s: %v", websiteURL, err)
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return ""
	}

	base := websiteURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}

	found := FindContactURLInHTML(string(body), base)
	if found != "" && f.validate(found) {
		return found
	}
	return ""
}

func (f *ContactPageFinder) findViaBrowser(websiteURL string) string {
	if f.Browser == nil {
		return ""
	}

	page, err := f.Browser.NewPage()
	if err != nil {
		return ""
	}
	defer page.Close()

	if err := page.Navigate(websiteURL); err != nil {
		log.Printf("Browser scrape failed for %s: %v", websiteURL, err)
		return ""
	}

	content, err := page.Content()
	if err != nil {
		return ""
	}
	base := page.CurrentURL()
	if base == "" {
		base = websiteURL
	}

	found := FindContactURLInHTML(content, base)
	if found != "" && f.validate(found) {
		return found
	}
	return ""
}

// validate checks that the candidate URL answers with a body.
func (f *ContactPageFinder) validate(candidate string) bool {
	req, err := http.NewRequest(http.MethodGet, candidate, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return err == nil && len(body) > 0 && resp.StatusCode < 500
}

// FindContactURLInHTML scans a document for anchors whose text or href
// mention "contact", and forms whose action does, returning the first usable
// absolute URL.
func FindContactURLInHTML(document, baseURL string) string {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	candidates := []string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				href := attrValue(n, "href")
				if href != "" {
					text := strings.ToLower(nodeText(n))
					if strings.Contains(text, "contact") || strings.Contains(strings.ToLower(href), "contact") {
						candidates = append(candidates, href)
					}
				}
			case "form":
				action := attrValue(n, "action")
				if action != "" && strings.Contains(strings.ToLower(action), "contact") {
					candidates = append(candidates, action)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	for _, href := range candidates {
		if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
