package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"coreagent/pkg/harness"
	"coreagent/pkg/message"
	"coreagent/pkg/tool"
)

type fetchArgs struct {
	URL       string `json:"url"`
	Summarize bool   `json:"summarize"`
	Length    int    `json:"length"`
}

const defaultFetchLength = 10000

// skippedTags never contribute their contained text to the extracted output.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"nav": true, "header": true, "footer": true, "aside": true,
}

// Summarizer condenses fetched page text with a cheap model, independent of
// the harness driving the parent conversation.
type Summarizer interface {
	StreamAndCollect(ctx context.Context, turn *harness.Turn) (*harness.TurnResult, error)
}

// NewFetchTool returns the `fetch` built-in: SSRF-checked HTTP GET, HTML
// stripped to readable text, optionally condensed by summarizer using
// summaryModel.
func NewFetchTool(summarizer Summarizer, summaryModel string) tool.Tool {
	return tool.Tool{
		Name:        "fetch",
		Description: "Fetch a URL and return its HTML-stripped text content, optionally summarized.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":       map[string]any{"type": "string", "description": "URL to fetch"},
				"summarize": map[string]any{"type": "boolean", "description": "Summarize the content with a cheap model"},
				"length":    map[string]any{"type": "integer", "description": "Maximum characters of content to return"},
			},
			"required": []string{"url"},
		},
		Capabilities: tool.Capabilities{ReadOnly: true},
		Handler: func(ctx context.Context, args string) (tool.Result, error) {
			return handleFetch(ctx, args, summarizer, summaryModel)
		},
	}
}

func handleFetch(ctx context.Context, args string, summarizer Summarizer, summaryModel string) (tool.Result, error) {
	var a fetchArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return tool.Result{}, fmt.Errorf("fetch: invalid arguments: %w", err)
	}
	if a.URL == "" {
		return tool.Result{}, fmt.Errorf("fetch: url is required")
	}
	length := a.Length
	if length <= 0 {
		length = defaultFetchLength
	}

	if err := validateURLForSSRF(a.URL); err != nil {
		return tool.Result{Output: err.Error(), IsError: true}, nil
	}

	body, err := fetchBody(ctx, a.URL)
	if err != nil {
		return tool.Result{}, err
	}

	content := stripHTML(body)
	if len(content) > length {
		content = content[:length] + "..."
	}

	if a.Summarize && summarizer != nil {
		summary, err := summarize(ctx, summarizer, summaryModel, content)
		if err != nil {
			return tool.Result{}, fmt.Errorf("fetch: summarize: %w", err)
		}
		content = summary
	}

	return tool.Result{Output: content}, nil
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func fetchBody(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; coreagent-fetch/1.0)")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch: %s returned HTTP %d", targetURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return "", fmt.Errorf("fetch: unsupported content type %q", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("fetch: reading body: %w", err)
	}
	return string(data), nil
}

// validateURLForSSRF rejects URLs that would let a fetched page pivot into
// internal network space: non-http(s) schemes, localhost variants, and
// hostnames resolving to private, loopback, link-local, or metadata IPs.
func validateURLForSSRF(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fetch: invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("fetch: URL scheme must be http or https, got %q", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("fetch: URL must have a hostname")
	}
	lowerHost := strings.ToLower(hostname)
	if lowerHost == "localhost" || strings.HasSuffix(lowerHost, ".localhost") {
		return fmt.Errorf("fetch: localhost URLs are not allowed")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// DNS resolution may be delegated to an egress proxy; allow it through.
		return nil
	}
	for _, ip := range ips {
		if isPrivateOrReservedIP(ip) {
			return fmt.Errorf("fetch: %s resolves to a private or reserved IP address", hostname)
		}
	}
	return nil
}

func isPrivateOrReservedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	return ip.Equal(net.ParseIP("169.254.169.254"))
}

// stripHTML tokenizes the document and keeps only text outside skippedTags,
// collapsing runs of whitespace the way rendered text would.
func stripHTML(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var sb strings.Builder
	var skipDepth int
	var skipStack []string

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return normalizeText(sb.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tt == html.StartTagToken && skippedTags[tag] {
				skipDepth++
				skipStack = append(skipStack, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipDepth > 0 && len(skipStack) > 0 && skipStack[len(skipStack)-1] == tag {
				skipStack = skipStack[:len(skipStack)-1]
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		kept = append(kept, strings.Join(fields, " "))
	}
	return strings.Join(kept, "\n")
}

func summarize(ctx context.Context, summarizer Summarizer, model, content string) (string, error) {
	turn := &harness.Turn{
		Model:        model,
		Instructions: "Summarize the following page content concisely, preserving key facts.",
		Messages: []message.Message{
			{Role: message.RoleUser, Parts: []message.Part{message.NewText(content)}},
		},
	}
	result, err := summarizer.StreamAndCollect(ctx, turn)
	if err != nil {
		return "", err
	}
	return result.FinalText, nil
}
