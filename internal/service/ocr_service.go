package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"backend/internal/external"
	"backend/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxReceiptSize = 5 << 20 // 5 MB

var allowedReceiptExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// --- DTOs ---

type ReceiptFormatsResponse struct {
	SupportedFormats []string `json:"supported_formats"`
	MaxFileSizeMB    int      `json:"max_file_size_mb"`
}

type ReceiptScanResponse struct {
	ReceiptPath  string `json:"receipt_path"`
	Amount       string `json:"amount,omitempty"`
	Date         string `json:"date,omitempty"`
	MerchantName string `json:"merchant_name,omitempty"`
	Category     string `json:"category,omitempty"`
	RawText      string `json:"raw_text,omitempty"`
}

// --- Interface ---

// OCRService stores an uploaded receipt and extracts expense fields from
// it. Extraction is best effort: recognition failures still return the
// stored path so the employee can submit with manual values.
type OCRService interface {
	Scan(ctx context.Context, actor Identity, filename string, image []byte) (ReceiptScanResponse, error)
	SupportedFormats() ReceiptFormatsResponse
}

type ocrService struct {
	client    external.OCRClient
	uploadDir string
	logger    *zap.Logger
}

func NewOCRService(client external.OCRClient, uploadDir string, logger *zap.Logger) OCRService {
	if logger == nil {
		logger = zap.L()
	}
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	return &ocrService{
		client:    client,
		uploadDir: uploadDir,
		logger:    logger.Named("ocr.service"),
	}
}

// --- Implementation ---

func (s *ocrService) SupportedFormats() ReceiptFormatsResponse {
	formats := make([]string, 0, len(allowedReceiptExtensions))
	for ext := range allowedReceiptExtensions {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return ReceiptFormatsResponse{
		SupportedFormats: formats,
		MaxFileSizeMB:    maxReceiptSize >> 20,
	}
}

func (s *ocrService) Scan(ctx context.Context, actor Identity, filename string, image []byte) (ReceiptScanResponse, error) {
	if len(image) == 0 {
		return ReceiptScanResponse{}, apperror.Validation("receipt file is empty")
	}
	if len(image) > maxReceiptSize {
		return ReceiptScanResponse{}, apperror.Validation("receipt file exceeds the 5MB limit")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedReceiptExtensions[ext] {
		return ReceiptScanResponse{}, apperror.Validation("unsupported receipt file type")
	}

	storedName := fmt.Sprintf("%s_%d%s", uuid.New().String(), time.Now().Unix(), ext)
	dir := filepath.Join(s.uploadDir, actor.CompanyID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ReceiptScanResponse{}, fmt.Errorf("failed to create upload directory: %w", err)
	}
	storedPath := filepath.Join(dir, storedName)
	if err := os.WriteFile(storedPath, image, 0o644); err != nil {
		return ReceiptScanResponse{}, fmt.Errorf("failed to store receipt: %w", err)
	}

	resp := ReceiptScanResponse{ReceiptPath: storedPath}

	text, err := s.client.ExtractText(ctx, filename, image)
	if err != nil {
		// The receipt is stored either way; the employee fills the form
		// manually when recognition is down.
		s.logger.Warn("receipt text extraction failed", zap.Error(err))
		return resp, nil
	}

	parsed := external.ParseReceiptText(text)
	resp.RawText = text
	resp.MerchantName = parsed.MerchantName
	resp.Category = parsed.Category
	if parsed.Amount != nil {
		resp.Amount = parsed.Amount.StringFixed(2)
	}
	if parsed.Date != nil {
		resp.Date = parsed.Date.Format("2006-01-02")
	}
	return resp, nil
}
