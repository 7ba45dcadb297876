package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	searchUC "github.com/khoahotran/linkgraph/internal/application/usecase/search"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type SearchHandler struct {
	searchUseCase *searchUC.SearchUseCase
	logger        logger.Logger
}

func NewSearchHandler(uc *searchUC.SearchUseCase, log logger.Logger) *SearchHandler {
	return &SearchHandler{
		searchUseCase: uc,
		logger:        log,
	}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.Error(apperror.NewInvalidInput("'q' query param is required", nil))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	output, err := h.searchUseCase.Execute(c.Request.Context(), searchUC.SearchInput{Query: query, Limit: limit})
	if err != nil {
		c.Error(err)
		return
	}
	if output.Cached {
		c.Header("X-Cache", "HIT")
	}
	h.respond(c, output)
}

// SemanticSearch ranks by embedding similarity. scope=connections limits
// results to the caller's direct connections.
func (h *SearchHandler) SemanticSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.Error(apperror.NewInvalidInput("'q' query param is required", nil))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	input := searchUC.SemanticSearchInput{Query: query, Limit: limit}
	switch c.Query("scope") {
	case "", "all":
	case "connections":
		profileID, ok := GetProfileIDFromGinContext(c)
		if !ok {
			c.Error(apperror.NewPermissionDenied("profileID not found in context"))
			return
		}
		input.ConnectionsOf = &profileID
	default:
		c.Error(apperror.NewInvalidInput("'scope' must be 'all' or 'connections'", nil))
		return
	}

	output, err := h.searchUseCase.ExecuteSemantic(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}
	h.respond(c, output)
}

func (h *SearchHandler) respond(c *gin.Context, output *searchUC.SearchOutput) {
	dtos := make([]SearchResultDTO, len(output.Results))
	for i, res := range output.Results {
		dtos[i] = ToSearchResultDTO(res)
	}
	c.JSON(http.StatusOK, dtos)
}
