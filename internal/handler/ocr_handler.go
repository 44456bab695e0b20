package handler

import (
	"io"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type OCRHandler struct {
	ocrService service.OCRService
}

func NewOCRHandler(ocrService service.OCRService) *OCRHandler {
	return &OCRHandler{ocrService: ocrService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *OCRHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/ocr/extract", middleware.RequireAuth(), h.Extract)
	router.GET("/ocr/supported-formats", middleware.RequireAuth(), h.SupportedFormats)
}

// SupportedFormats lists the accepted receipt file types
// @Summary      List supported receipt formats
// @Tags         ocr
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ReceiptFormatsResponse}
// @Router       /ocr/supported-formats [get]
func (h *OCRHandler) SupportedFormats(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.ocrService.SupportedFormats()))
}

// Extract scans a receipt image
// @Summary      Extract receipt data
// @Description  Stores the uploaded receipt and best-effort extracts amount, date, merchant, and a category hint. Recognition failures still return the stored path.
// @Tags         ocr
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        receipt  formData  file  true  "Receipt image (jpg, png, webp, or pdf, max 5MB)"
// @Success      200      {object}  response.Response{data=service.ReceiptScanResponse}
// @Failure      400      {object}  response.Response
// @Router       /ocr/extract [post]
func (h *OCRHandler) Extract(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "receipt file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read receipt file"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read receipt file"))
		return
	}

	result, err := h.ocrService.Scan(c.Request.Context(), identity, fileHeader.Filename, image)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
