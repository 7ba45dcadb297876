package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/suite"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/application/usecase/ingest"
	profileUC "github.com/khoahotran/linkgraph/internal/application/usecase/profile"
	searchUC "github.com/khoahotran/linkgraph/internal/application/usecase/search"
	uploadUC "github.com/khoahotran/linkgraph/internal/application/usecase/upload"
	"github.com/khoahotran/linkgraph/internal/domain/search"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/internal/testutil/memstore"
	"github.com/khoahotran/linkgraph/pkg/auth"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

const (
	profileCSV     = "First Name,Last Name,Headline,Industry,Profile URL\nAda,Lovelace,Analyst,Computing,https://www.linkedin.com/in/ada\n"
	connectionsCSV = "First Name,Last Name,URL,Email Address,Company,Position,Connected On\n" +
		"Alan,Turing,https://www.linkedin.com/in/alan,,Bletchley Park,Cryptanalyst,15 Mar 2021\n" +
		"Grace,Hopper,https://www.linkedin.com/in/grace,,,,01 Jan 2020\n"
)

type recordingPublisher struct {
	mu       sync.Mutex
	uploads  []service.UploadEventPayload
	profiles []service.ProfileEventPayload
}

func (p *recordingPublisher) PublishUploadEvent(_ context.Context, payload service.UploadEventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, payload)
	return nil
}

func (p *recordingPublisher) PublishProfileEvent(_ context.Context, payload service.ProfileEventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = append(p.profiles, payload)
	return nil
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *memBlobs) Put(_ context.Context, path string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[path] = data
	return path, nil
}

func (b *memBlobs) Get(_ context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[path]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", path)
	}
	return d, nil
}

type fakeSearchRepo struct {
	results []search.Result
}

func (f *fakeSearchRepo) Keyword(context.Context, string, int) ([]search.Result, error) {
	return f.results, nil
}

func (f *fakeSearchRepo) Nearest(context.Context, pgvector.Vector, int, []uuid.UUID) ([]search.Result, error) {
	return f.results, nil
}

func (f *fakeSearchRepo) SetEmbedding(context.Context, uuid.UUID, pgvector.Vector) error {
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateEmbeddings(context.Context, string) (pgvector.Vector, error) {
	return pgvector.NewVector([]float32{1, 0, 0}), nil
}

type HandlerSuite struct {
	suite.Suite
	router     *gin.Engine
	store      *memstore.Store
	publisher  *recordingPublisher
	searchRepo *fakeSearchRepo
	jwt        *auth.JWTService
	adaToken   string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	s.store = memstore.New()
	s.publisher = &recordingPublisher{}
	s.searchRepo = &fakeSearchRepo{}
	blobs := &memBlobs{data: map[string][]byte{}}

	writer := ingest.NewGraphWriter(
		s.store.Companies(), s.store.Institutions(), s.store.Positions(),
		s.store.Education(), s.store.Skills(), s.store.Connections(), log,
	)
	resolver := ingest.NewIdentityResolver(s.store.Profiles(), log)
	ingestUseCase := ingest.NewIngestUseCase(s.store.Profiles(), resolver, writer, s.store.Runs(), s.publisher, log, 0, 0)
	profileUseCase := profileUC.NewProfileUseCase(
		s.store.Profiles(), s.store.Positions(), s.store.Education(), s.store.Skills(),
		s.store.Connections(), writer, s.publisher, log,
	)
	uploadUseCase := uploadUC.NewUploadExportUseCase(blobs, s.store.Uploads(), s.store.Runs(), s.publisher, "exports", 1<<20, log)
	searchUseCase := searchUC.NewSearchUseCase(s.searchRepo, s.store.Connections(), fakeEmbedder{}, nil, 0, 10, log)

	s.jwt = auth.NewJWTService("test-secret", "", time.Hour)
	var err error
	s.adaToken, err = s.jwt.GenerateToken(auth.Identity{AccountID: "acct-ada", Email: "ada@example.com"})
	s.Require().NoError(err)

	s.router = gin.New()
	s.router.Use(ErrorMiddleware(log))
	RegisterRoutes(s.router, Handlers{
		Imports:  NewImportHandler(ingestUseCase, uploadUseCase, uploadUC.NewGetRunStatusUseCase(s.store.Runs()), 1<<20, log),
		Profiles: NewProfileHandler(profileUseCase, log),
		Search:   NewSearchHandler(searchUseCase, log),
	}, AuthMiddleware(s.jwt, profileUseCase, log))
}

func (s *HandlerSuite) do(req *http.Request, token string) (*httptest.ResponseRecorder, map[string]any) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	var body map[string]any
	if strings.HasPrefix(strings.TrimSpace(rr.Body.String()), "{") {
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func multipartRequest(t *testing.T, target string, pairs ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for i := 0; i+1 < len(pairs); i += 2 {
		part, err := w.CreateFormFile("files", pairs[i])
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(pairs[i+1]))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target string, v any) *http.Request {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (s *HandlerSuite) TestHealthIsPublic() {
	rr, body := s.do(httptest.NewRequest(http.MethodGet, "/api/health", nil), "")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("UP", body["status"])
}

func (s *HandlerSuite) TestRejectsMissingAndBadTokens() {
	rr, body := s.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("Unauthorized", body["error"])

	rr, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "not-a-jwt")
	s.Equal(http.StatusUnauthorized, rr.Code)

	other := auth.NewJWTService("other-secret", "", time.Hour)
	forged, err := other.GenerateToken(auth.Identity{AccountID: "acct-ada"})
	s.Require().NoError(err)
	rr, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), forged)
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *HandlerSuite) TestFirstRequestCreatesAccountProfile() {
	rr, body := s.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), s.adaToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(false, body["is_shadow"])
	s.Equal("ada@example.com", body["email"])

	s.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), s.adaToken)
	s.Len(s.store.AllProfiles(), 1)
}

func (s *HandlerSuite) TestSyncImport() {
	req := multipartRequest(s.T(), "/api/imports",
		export.FileProfile, profileCSV,
		export.FileConnections, connectionsCSV,
	)
	rr, body := s.do(req, s.adaToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Equal("Done", body["state"])
	counts := body["counts"].(map[string]any)
	s.Equal(float64(2), counts["connections_written"])
	s.Equal(float64(2), counts["shadows_created"])

	rr, body = s.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), s.adaToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("Ada", body["first_name"])
	s.Equal("ada", body["linkedin_slug"])
	s.Equal(float64(2), body["connection_count"])

	rr, body = s.do(httptest.NewRequest(http.MethodGet, "/api/profile/connections?limit=1", nil), s.adaToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(float64(2), body["total"])
	s.Len(body["connections"], 1)
}

func (s *HandlerSuite) TestSyncImportMissingConnections() {
	req := multipartRequest(s.T(), "/api/imports", export.FileProfile, profileCSV)
	rr, body := s.do(req, s.adaToken)
	s.Require().Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Equal("MissingRequiredFiles", body["error"])
	s.Equal([]any{export.FileConnections}, body["missing"])
	s.NotEmpty(body["run_id"])
	s.Empty(s.store.Edges())
}

func (s *HandlerSuite) TestImportWithoutFiles() {
	req := httptest.NewRequest(http.MethodPost, "/api/imports", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr, body := s.do(req, s.adaToken)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("InvalidInput", body["error"])
}

func (s *HandlerSuite) TestAsyncUploadAndRunStatus() {
	req := multipartRequest(s.T(), "/api/uploads",
		export.FileProfile, profileCSV,
		export.FileConnections, connectionsCSV,
	)
	rr, body := s.do(req, s.adaToken)
	s.Require().Equal(http.StatusAccepted, rr.Code, rr.Body.String())
	s.Equal("AwaitingFiles", body["state"])
	runID := body["id"].(string)

	s.Require().Len(s.publisher.uploads, 1)
	event := s.publisher.uploads[0]
	s.Equal(runID, event.RunID.String())
	s.Equal("ada@example.com", event.Email)
	s.Len(event.Files, 2)

	rr, body = s.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+runID, nil), s.adaToken)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("AwaitingFiles", body["state"])

	grace, err := s.jwt.GenerateToken(auth.Identity{AccountID: "acct-grace"})
	s.Require().NoError(err)
	rr, body = s.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+runID, nil), grace)
	s.Equal(http.StatusForbidden, rr.Code)
	s.Equal("PermissionDenied", body["error"])

	rr, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+uuid.NewString(), nil), s.adaToken)
	s.Equal(http.StatusNotFound, rr.Code)

	rr, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/imports/nope", nil), s.adaToken)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestUploadRejectsForeignFiles() {
	req := multipartRequest(s.T(), "/api/uploads", "resume.pdf", "%PDF")
	rr, body := s.do(req, s.adaToken)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("InvalidInput", body["error"])
	s.Empty(s.publisher.uploads)
}

func (s *HandlerSuite) TestUpdateProfile() {
	rr, body := s.do(jsonRequest(http.MethodPut, "/api/profile", map[string]any{
		"headline": "Engineer",
		"skills":   []map[string]any{{"name": "Go"}, {"name": "SQL"}},
		"positions": []map[string]any{
			{"company_name": "Analytical Engines", "title": "Programmer"},
		},
	}), s.adaToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Equal("Engineer", body["headline"])
	s.Len(body["skills"], 2)
	s.Len(body["positions"], 1)

	skills := body["skills"].([]any)
	keep := skills[0].(map[string]any)
	rr, body = s.do(jsonRequest(http.MethodPut, "/api/profile", map[string]any{
		"skills": []map[string]any{{"id": keep["id"], "name": "Golang"}},
	}), s.adaToken)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Len(body["skills"], 1)
	s.Equal("Golang", body["skills"].([]any)[0].(map[string]any)["name"])
	s.Len(body["positions"], 1, "omitted lists are left alone")
}

func (s *HandlerSuite) TestUpdateProfileRejectsBlankRows() {
	rr, body := s.do(jsonRequest(http.MethodPut, "/api/profile", map[string]any{
		"skills": []map[string]any{{"name": "  "}},
	}), s.adaToken)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("InvalidInput", body["error"])
}

func (s *HandlerSuite) TestGetProfileByID() {
	rr, _ := s.do(httptest.NewRequest(http.MethodGet, "/api/profiles/"+uuid.NewString(), nil), s.adaToken)
	s.Equal(http.StatusNotFound, rr.Code)

	rr, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/profiles/xyz", nil), s.adaToken)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestSearch() {
	first, last, headline := "Ada", "Lovelace", "Analyst"
	s.searchRepo.results = []search.Result{{ID: uuid.New(), Score: 0.5, FirstName: &first, LastName: &last, Headline: &headline}}

	rr, _ := s.do(httptest.NewRequest(http.MethodGet, "/api/search", nil), s.adaToken)
	s.Equal(http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=ada", nil)
	req.Header.Set("Authorization", "Bearer "+s.adaToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var results []SearchResultDTO
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &results))
	s.Require().Len(results, 1)
	s.Equal("Ada Lovelace", results[0].Name)
	s.Equal(float32(0.5), results[0].Score)
}

func (s *HandlerSuite) TestSemanticSearchScopes() {
	s.searchRepo.results = []search.Result{{ID: uuid.New(), Score: 0.9}}

	rr, _ := s.do(httptest.NewRequest(http.MethodGet, "/api/search/semantic?q=ml&scope=everyone", nil), s.adaToken)
	s.Equal(http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/search/semantic?q=ml&scope=connections", nil)
	req.Header.Set("Authorization", "Bearer "+s.adaToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq("[]", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/search/semantic?q=ml", nil)
	req.Header.Set("Authorization", "Bearer "+s.adaToken)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var results []SearchResultDTO
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &results))
	s.Len(results, 1)
}
