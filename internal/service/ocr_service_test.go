package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"backend/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOCRClient struct {
	text string
	err  error
}

func (c *fakeOCRClient) ExtractText(context.Context, string, []byte) (string, error) {
	return c.text, c.err
}

func newOCRService(t *testing.T, client *fakeOCRClient) OCRService {
	t.Helper()
	return NewOCRService(client, t.TempDir(), zap.NewNop())
}

func TestOCRScanStoresAndParses(t *testing.T) {
	env := newTestEnv(t)
	svc := newOCRService(t, &fakeOCRClient{text: "JOE'S CAFE\n2026-03-14\nTOTAL 12.50"})

	resp, err := svc.Scan(context.Background(), env.identity(env.employee), "receipt.jpg", []byte("image-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "12.50", resp.Amount)
	assert.Equal(t, "2026-03-14", resp.Date)
	assert.Equal(t, "JOE'S CAFE", resp.MerchantName)

	stored, err := os.ReadFile(resp.ReceiptPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), stored)
}

func TestOCRScanExtractionFailureKeepsFile(t *testing.T) {
	env := newTestEnv(t)
	svc := newOCRService(t, &fakeOCRClient{err: errors.New("ocr backend down")})

	resp, err := svc.Scan(context.Background(), env.identity(env.employee), "receipt.png", []byte("image-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ReceiptPath)
	assert.Empty(t, resp.Amount)
}

func TestOCRScanValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newOCRService(t, &fakeOCRClient{})
	ctx := context.Background()
	identity := env.identity(env.employee)

	_, err := svc.Scan(ctx, identity, "receipt.gif", []byte("image-bytes"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)

	_, err = svc.Scan(ctx, identity, "receipt.jpg", nil)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)
}

func TestOCRSupportedFormats(t *testing.T) {
	svc := newOCRService(t, &fakeOCRClient{})

	formats := svc.SupportedFormats()
	assert.Equal(t, []string{".jpeg", ".jpg", ".pdf", ".png", ".webp"}, formats.SupportedFormats)
	assert.Equal(t, 5, formats.MaxFileSizeMB)
}
