package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptData is the best-effort result of scanning a receipt image.
// Any subset of fields may be missing; an empty result is not an error.
type ReceiptData struct {
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Date         *time.Time       `json:"date,omitempty"`
	MerchantName string           `json:"merchant_name,omitempty"`
	Category     string           `json:"category,omitempty"`
}

// OCRClient extracts raw text from a receipt image. Parsing the text
// into structured fields happens locally in ParseReceiptText.
type OCRClient interface {
	ExtractText(ctx context.Context, filename string, image []byte) (string, error)
}

// HTTPOCRClient posts the image to an external recognition service that
// answers {"text": "..."}.
type HTTPOCRClient struct {
	url    string
	client *http.Client
}

func NewHTTPOCRClient(url string) *HTTPOCRClient {
	return &HTTPOCRClient{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPOCRClient) ExtractText(ctx context.Context, filename string, image []byte) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("OCR service URL is not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(image); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR service returned status %d", resp.StatusCode)
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}
	return payload.Text, nil
}

var (
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)TOTAL\s*[:\-]?\s*\$?\s*(\d+\.\d{2})`),
		regexp.MustCompile(`(?i)Amount\s*[:\-]?\s*\$?\s*(\d+\.\d{2})`),
		regexp.MustCompile(`\$\s*(\d+(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)USD\s*(\d+(?:\.\d{2})?)`),
		regexp.MustCompile(`(\d+\.\d{2})`),
	}

	datePatterns = []struct {
		re      *regexp.Regexp
		layouts []string
	}{
		{regexp.MustCompile(`(\d{4}[/-]\d{1,2}[/-]\d{1,2})`), []string{"2006-01-02", "2006/01/02"}},
		{regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{4})`), []string{"01/02/2006", "01-02-2006", "02/01/2006", "02-01-2006"}},
		{regexp.MustCompile(`(\w{3}\s+\d{1,2},?\s+\d{4})`), []string{"Jan 2, 2006", "Jan 2 2006"}},
		{regexp.MustCompile(`(\d{1,2}\s+\w{3}\s+\d{4})`), []string{"2 Jan 2006"}},
	}

	// Ordered so repeated parses of the same text agree.
	categoryKeywords = []struct {
		name     string
		keywords []string
	}{
		{"Travel", []string{"taxi", "uber", "lyft", "airline", "flight", "hotel", "parking"}},
		{"Meals", []string{"restaurant", "cafe", "coffee", "pizza", "burger", "bar", "diner"}},
		{"Office Supplies", []string{"staples", "office", "paper", "printer", "supplies"}},
		{"Internet/Phone", []string{"verizon", "at&t", "t-mobile", "internet", "wireless"}},
	}
)

// ParseReceiptText heuristically pulls the amount, date, merchant and a
// category hint out of OCR output. Everything is optional; callers must
// tolerate a zero-value result.
func ParseReceiptText(text string) ReceiptData {
	var data ReceiptData
	if strings.TrimSpace(text) == "" {
		return data
	}

	data.Amount = extractAmount(text)
	data.Date = extractDate(text)
	data.MerchantName = extractMerchant(text)
	data.Category = extractCategory(text)
	return data
}

// extractAmount returns the largest plausible monetary value found,
// which on receipts is almost always the total.
func extractAmount(text string) *decimal.Decimal {
	min := decimal.RequireFromString("0.01")
	max := decimal.RequireFromString("999999.99")

	var best *decimal.Decimal
	for _, pattern := range amountPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			value, err := decimal.NewFromString(match[1])
			if err != nil {
				continue
			}
			if value.LessThan(min) || value.GreaterThan(max) {
				continue
			}
			if best == nil || value.GreaterThan(*best) {
				v := value
				best = &v
			}
		}
	}
	return best
}

func extractDate(text string) *time.Time {
	for _, candidate := range datePatterns {
		for _, match := range candidate.re.FindAllStringSubmatch(text, -1) {
			for _, layout := range candidate.layouts {
				if parsed, err := time.Parse(layout, match[1]); err == nil {
					return &parsed
				}
			}
		}
	}
	return nil
}

// extractMerchant takes the first non-empty line that isn't dominated by
// digits, the usual position of the store name on a receipt.
func extractMerchant(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 || len(line) > 100 {
			continue
		}
		digits := 0
		for _, r := range line {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits*2 < len(line) {
			return line
		}
	}
	return ""
}

func extractCategory(text string) string {
	lower := strings.ToLower(text)
	for _, category := range categoryKeywords {
		for _, keyword := range category.keywords {
			if strings.Contains(lower, keyword) {
				return category.name
			}
		}
	}
	return ""
}
