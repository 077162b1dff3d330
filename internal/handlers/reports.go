package handlers

import (
	"bytes"
	"net/http"

	"field-service/internal/middleware"
	"field-service/internal/models"
	"field-service/internal/reports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	signedDownloadName  = "Signed_Report.pdf"
	previewDownloadName = "ReportService.pdf"
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ReportHandler struct {
	reports *reports.Manager
	log     *zap.Logger
}

func NewReportHandler(m *reports.Manager, log *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: m, log: orNop(log)}
}

func (h *ReportHandler) Create(c *gin.Context) {
	var in models.CreateReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input. Please provide all required fields.")
		return
	}

	report, err := h.reports.Create(c.Request.Context(), in, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// Update принимает только изменяемые поля; отсутствующие в теле остаются как есть.
func (h *ReportHandler) Update(c *gin.Context) {
	var in models.UpdateReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	report, err := h.reports.Update(c.Request.Context(), c.Param("id"), in, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) List(c *gin.Context) {
	list, err := h.reports.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) ListByEngineer(c *gin.Context) {
	list, err := h.reports.ListByEngineer(c.Request.Context(), c.Param("engineerId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ReportHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.reports.Export(c.Request.Context(), &buf); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reports.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

type engineerSignRequest struct {
	ReportID  string `json:"reportId"`
	Signature string `json:"signature"`
}

// EngineeringSign отдаёт PDF с подписью инженера.
func (h *ReportHandler) EngineeringSign(c *gin.Context) {
	var req engineerSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	path, err := h.reports.EngineerSign(c.Request.Context(), req.ReportID, req.Signature, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.FileAttachment(path, signedDownloadName)
}

type signatureRequestRequest struct {
	ReportID      string `json:"reportId"`
	Signature     string `json:"signature"`
	CustomerEmail string `json:"customerEmail"`
}

func (h *ReportHandler) SendEmailCustomerSign(c *gin.Context) {
	var req signatureRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	err := h.reports.RequestCustomerSignature(c.Request.Context(), req.ReportID, req.Signature, req.CustomerEmail, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email sent to customer for signature"})
}

type customerSignRequest struct {
	ReportID          string `json:"reportId"`
	CustomerSignature string `json:"customerSignature"`
	CustomerEmail     string `json:"customerEmail"`
}

func (h *ReportHandler) CustomerSign(c *gin.Context) {
	var req customerSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	err := h.reports.CustomerSign(c.Request.Context(), req.ReportID, req.CustomerSignature, req.CustomerEmail, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report signed successfully and email sent!"})
}

type signDirectRequest struct {
	ReportID          string `json:"reportId"`
	CustomerSignature string `json:"customerSignature"`
}

func (h *ReportHandler) SignDirect(c *gin.Context) {
	var req signDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	path, err := h.reports.SignDirectly(c.Request.Context(), req.ReportID, req.CustomerSignature, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.FileAttachment(path, signedDownloadName)
}

func (h *ReportHandler) Preview(c *gin.Context) {
	path, err := h.reports.Preview(c.Request.Context(), c.Param("reportId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.FileAttachment(path, previewDownloadName)
}
