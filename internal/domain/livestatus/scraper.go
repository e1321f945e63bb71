package livestatus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/edforecast/edforecast/internal/platform/metrics"
)

const (
	waitingHeading = "currently waiting"
	inEDHeading    = "currently in ED"

	maxPageBytes = 2 << 20
)

var firstNumber = regexp.MustCompile(`\d+`)

// PageScraper reads counts from the public facility page at
// <baseURL>/facility/<orgID>.
type PageScraper struct {
	baseURL    string
	httpClient *http.Client
}

func NewPageScraper(baseURL string, timeout time.Duration) *PageScraper {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PageScraper{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PageURL is the facility page scraped for orgID.
func (s *PageScraper) PageURL(orgID string) string {
	return s.baseURL + "/facility/" + orgID
}

func (s *PageScraper) Counts(ctx context.Context, orgID string) (counts Counts, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.LiveStatusFetches.WithLabelValues("scrape", outcome).Inc()
	}()

	if !ValidOrganizationID(orgID) {
		return Counts{}, fmt.Errorf("%w: %q", ErrInvalidOrganization, orgID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.PageURL(orgID), nil)
	if err != nil {
		return Counts{}, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Counts{}, fmt.Errorf("%w: request facility page: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Counts{}, fmt.Errorf("%w: facility page returned %s", ErrUnavailable, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Counts{}, fmt.Errorf("%w: parse facility page: %v", ErrUnavailable, err)
	}
	return ParseCounts(doc)
}

// ParseCounts finds the "currently waiting" and "currently in ED" headings
// and reads the first number from the paragraph that follows each one.
func ParseCounts(doc *html.Node) (Counts, error) {
	waiting, ok := figureAfterHeading(doc, waitingHeading)
	if !ok {
		return Counts{}, fmt.Errorf("%w: no %q heading on page", ErrUnavailable, waitingHeading)
	}
	inED, ok := figureAfterHeading(doc, inEDHeading)
	if !ok {
		return Counts{}, fmt.Errorf("%w: no %q heading on page", ErrUnavailable, inEDHeading)
	}
	return Counts{Waiting: waiting, InED: inED}, nil
}

// ExtractNumber returns the first run of digits in text, or 0.
func ExtractNumber(text string) int {
	n, err := strconv.Atoi(firstNumber.FindString(text))
	if err != nil {
		return 0
	}
	return n
}

func figureAfterHeading(doc *html.Node, heading string) (int, bool) {
	h2 := findElement(doc, func(n *html.Node) bool {
		return n.Data == "h2" && strings.Contains(strings.ToLower(textContent(n)), strings.ToLower(heading))
	})
	if h2 == nil {
		return 0, false
	}
	for sib := h2.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && sib.Data == "p" {
			return ExtractNumber(textContent(sib)), true
		}
	}
	return 0, false
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
