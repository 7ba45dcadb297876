package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/usecase/ingest"
	uploadUC "github.com/khoahotran/linkgraph/internal/application/usecase/upload"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

// Multipart framing on top of the file bytes themselves.
const multipartOverhead = 1 << 20

type ImportHandler struct {
	ingestUseCase    *ingest.IngestUseCase
	uploadUseCase    *uploadUC.UploadExportUseCase
	runStatusUseCase *uploadUC.GetRunStatusUseCase
	maxBytes         int64
	logger           logger.Logger
}

func NewImportHandler(
	i *ingest.IngestUseCase,
	u *uploadUC.UploadExportUseCase,
	s *uploadUC.GetRunStatusUseCase,
	maxBytes int64,
	log logger.Logger,
) *ImportHandler {
	return &ImportHandler{
		ingestUseCase:    i,
		uploadUseCase:    u,
		runStatusUseCase: s,
		maxBytes:         maxBytes,
		logger:           log,
	}
}

// Import runs ingestion synchronously over the files of a multipart form.
func (h *ImportHandler) Import(c *gin.Context) {
	profileID, ok := GetProfileIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("profileID not found in context"))
		return
	}

	uploaded, err := h.readFiles(c)
	if err != nil {
		c.Error(err)
		return
	}
	files := make([]export.File, len(uploaded))
	for i, f := range uploaded {
		files[i] = export.File{Name: f.Name, Content: f.Content}
	}

	out, err := h.ingestUseCase.Execute(c.Request.Context(), ingest.IngestInput{
		Source:         ingest.SourceAPI,
		OwnerProfileID: profileID,
		Files:          files,
	})
	if err != nil {
		body := errorBody(err)
		if out != nil {
			body["run_id"] = out.RunID.String()
			body["warnings"] = out.Warnings
		}
		h.logger.Warn("Import failed", zap.String("profile_id", profileID.String()), zap.Error(err))
		c.JSON(apperror.ToHTTPStatus(err), body)
		return
	}

	c.JSON(http.StatusOK, ToImportResultDTO(out))
}

// Upload stores the files and queues the run for the worker.
func (h *ImportHandler) Upload(c *gin.Context) {
	profileID, ok := GetProfileIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("profileID not found in context"))
		return
	}

	files, err := h.readFiles(c)
	if err != nil {
		c.Error(err)
		return
	}

	out, err := h.uploadUseCase.Execute(c.Request.Context(), uploadUC.UploadExportInput{
		ProfileID: profileID,
		Email:     GetEmailFromGinContext(c),
		Files:     files,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, out.Run)
}

func (h *ImportHandler) GetRun(c *gin.Context) {
	profileID, ok := GetProfileIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewPermissionDenied("profileID not found in context"))
		return
	}

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid run ID format", err))
		return
	}

	run, err := h.runStatusUseCase.Execute(c.Request.Context(), uploadUC.GetRunStatusInput{
		RunID:     runID,
		ProfileID: profileID,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *ImportHandler) readFiles(c *gin.Context) ([]uploadUC.UploadedFile, error) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperror.NewInvalidInput("expected a multipart form with 'files'", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, apperror.NewInvalidInput("no files uploaded under 'files'", nil)
	}

	files := make([]uploadUC.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, apperror.NewInvalidInput("cannot open uploaded file "+fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperror.NewInvalidInput("cannot read uploaded file "+fh.Filename, err)
		}
		files = append(files, uploadUC.UploadedFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     data,
		})
	}
	return files, nil
}
