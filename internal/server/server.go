package server

import (
	"context"
	"encoding/base64"
	"errors"
	"html/template"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/mri-highlighter/internal/utils"
	"github.com/menta2k/mri-highlighter/pkg/annotate"
	"github.com/menta2k/mri-highlighter/pkg/detection"
	"github.com/menta2k/mri-highlighter/pkg/processing"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

// Detector is the part of detection.Detector the server needs
type Detector interface {
	Detect(ctx context.Context, img image.Image, prompt string) (detection.Result, error)
	Options() detection.Options
}

// Handler serves the upload form and runs one detection per submission
type Handler struct {
	detector    Detector
	processor   *processing.Processor
	logger      *zap.Logger
	maxUpload   int64
	prompt      string
	requestTime time.Duration
}

// Config holds the handler settings
type Config struct {
	MaxUploadMB    int
	DefaultPrompt  string
	RequestTimeout time.Duration
}

// NewHandler creates a handler around detector
func NewHandler(detector Detector, processor *processing.Processor, logger *zap.Logger, cfg Config) *Handler {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.DefaultPrompt == "" {
		cfg.DefaultPrompt = detection.DefaultPrompt
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	return &Handler{
		detector:    detector,
		processor:   processor,
		logger:      logger.Named("server"),
		maxUpload:   int64(cfg.MaxUploadMB) << 20,
		prompt:      cfg.DefaultPrompt,
		requestTime: cfg.RequestTimeout,
	}
}

// Routes builds the gin engine serving the handler endpoints
func (h *Handler) Routes() *gin.Engine {
	eng := gin.New()
	eng.Use(gin.Recovery(), h.accessLog)
	eng.SetHTMLTemplate(pageTemplate)

	eng.GET("/", h.FormHandler)
	eng.POST("/annotate", h.AnnotateHandler)
	eng.GET("/healthz", h.HealthHandler)

	return eng
}

func (h *Handler) accessLog(ctx *gin.Context) {
	start := time.Now()
	ctx.Next()
	h.logger.Debug("request",
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.URL.Path),
		zap.Int("status", ctx.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)))
}

type pageData struct {
	Prompt    string
	Mode      string
	RequestID string
	Text      string
	Boxes     []types.BoundingBox
	ImageSrc  template.URL
	Error     string
}

// FormHandler renders the empty upload form
func (h *Handler) FormHandler(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "page", pageData{Prompt: h.prompt, Mode: string(h.detector.Options().Mode)})
}

// AnnotateHandler handles POST /annotate
func (h *Handler) AnnotateHandler(ctx *gin.Context) {
	requestID := uuid.NewString()
	logger := h.logger.With(zap.String("request_id", requestID))
	data := pageData{RequestID: requestID, Mode: string(h.detector.Options().Mode)}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxUpload)
	if err := ctx.Request.ParseMultipartForm(h.maxUpload); err != nil {
		data.Error = "Failed to parse form: " + err.Error()
		ctx.HTML(http.StatusBadRequest, "page", data)
		return
	}

	data.Prompt = strings.TrimSpace(ctx.PostForm("prompt"))
	if data.Prompt == "" {
		data.Prompt = h.prompt
	}

	header, err := ctx.FormFile("image")
	if err != nil {
		data.Error = "Please upload an MRI image"
		ctx.HTML(http.StatusBadRequest, "page", data)
		return
	}
	if !utils.IsImageFile(header.Filename) {
		logger.Warn("rejected upload", zap.String("filename", header.Filename))
		data.Error = "Unsupported file type: upload a PNG, JPEG or WebP image"
		ctx.HTML(http.StatusBadRequest, "page", data)
		return
	}
	file, err := header.Open()
	if err != nil {
		data.Error = "Failed to read upload: " + err.Error()
		ctx.HTML(http.StatusBadRequest, "page", data)
		return
	}
	defer file.Close()

	img, err := h.processor.LoadImageFromReader(file)
	if err == nil {
		err = h.processor.ValidateImage(img)
	}
	if err != nil {
		logger.Warn("rejected upload", zap.String("filename", header.Filename), zap.Error(err))
		data.Error = err.Error()
		ctx.HTML(http.StatusBadRequest, "page", data)
		return
	}

	detectCtx, cancel := context.WithTimeout(ctx.Request.Context(), h.requestTime)
	defer cancel()

	start := time.Now()
	result, err := h.detector.Detect(detectCtx, img, data.Prompt)
	logger.Info("detection finished",
		zap.String("filename", header.Filename),
		zap.String("size", utils.FormatFileSize(header.Size)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("boxes", len(result.Boxes)),
		zap.Error(err))

	data.Text = result.Text
	data.Boxes = result.Boxes
	if err != nil {
		data.Error = describeError(err)
		ctx.HTML(statusFor(err), "page", data)
		return
	}

	rendered := result.Annotated
	if result.Mask != nil {
		rendered = annotate.Overlay(img, result.Mask, h.detector.Options().Annotate)
	}
	if rendered != nil {
		png, err := processing.EncodePNG(rendered)
		if err != nil {
			logger.Error("failed to encode result", zap.Error(err))
			data.Error = "Failed to encode annotated image"
			ctx.HTML(http.StatusInternalServerError, "page", data)
			return
		}
		data.ImageSrc = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	}
	ctx.HTML(http.StatusOK, "page", data)
}

// HealthHandler reports liveness
func (h *Handler) HealthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func describeError(err error) string {
	var upstream *types.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return "The model service reported an error: " + upstream.Error()
	case errors.Is(err, types.ErrNoRecognizedStructure):
		return "Unexpected response format from the model"
	case errors.Is(err, types.ErrEmptyGeneratedText):
		return "The model returned no text"
	case errors.Is(err, types.ErrInsufficientPoints):
		return "No coordinates found in the model response"
	default:
		return err.Error()
	}
}

func statusFor(err error) int {
	var upstream *types.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway
	}
	// Parsing outcomes are normal results the page explains
	return http.StatusOK
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Medical Image Tumor Detection</title></head>
<body>
<h1>Medical Image Tumor Detection</h1>
<form method="post" action="/annotate" enctype="multipart/form-data">
  <p><label>Upload an MRI image: <input type="file" name="image" accept="image/png,image/jpeg,image/webp"></label></p>
  <p><label>Enter your prompt:<br><textarea name="prompt" rows="10" cols="80">{{.Prompt}}</textarea></label></p>
  <p><button type="submit">Run Model</button> <small>mode: {{.Mode}}</small></p>
</form>
{{if .Error}}<p class="error" style="color:#b00">{{.Error}}</p>{{end}}
{{if .Text}}<h2>Model Response:</h2><pre>{{.Text}}</pre>{{end}}
{{if .Boxes}}<p>Boxes:{{range .Boxes}} {{.}}{{end}}</p>{{end}}
{{if .ImageSrc}}<img alt="annotated image" src="{{.ImageSrc}}">{{end}}
{{if .RequestID}}<p><small>request {{.RequestID}}</small></p>{{end}}
</body>
</html>
`))
