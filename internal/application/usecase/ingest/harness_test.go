package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/internal/testutil/memstore"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUploadEvent(ctx context.Context, payload service.UploadEventPayload) error {
	return m.Called(ctx, payload).Error(0)
}

func (m *mockPublisher) PublishProfileEvent(ctx context.Context, payload service.ProfileEventPayload) error {
	return m.Called(ctx, payload).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type memBlobs map[string][]byte

func (b memBlobs) Put(_ context.Context, path string, data []byte) (string, error) {
	b[path] = data
	return path, nil
}

func (b memBlobs) Get(_ context.Context, path string) ([]byte, error) {
	data, ok := b[path]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", path)
	}
	return data, nil
}

type harness struct {
	store     *memstore.Store
	publisher *mockPublisher
	resolver  *IdentityResolver
	writer    *GraphWriter
	ingest    *IngestUseCase
}

func newHarness() *harness {
	log := logger.NewNop()
	store := memstore.New()
	pub := &mockPublisher{}
	pub.On("PublishProfileEvent", mock.Anything, mock.Anything).Return(nil).Maybe()

	resolver := NewIdentityResolver(store.Profiles(), log)
	writer := NewGraphWriter(
		store.Companies(), store.Institutions(), store.Positions(),
		store.Education(), store.Skills(), store.Connections(), log,
	)
	return &harness{
		store:     store,
		publisher: pub,
		resolver:  resolver,
		writer:    writer,
		ingest:    NewIngestUseCase(store.Profiles(), resolver, writer, store.Runs(), pub, log, 0, 0),
	}
}

func csvFiles(pairs ...string) []export.File {
	out := make([]export.File, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, export.File{Name: pairs[i], Content: []byte(pairs[i+1])})
	}
	return out
}

func strp(s string) *string { return &s }

func mustEdge(a, b uuid.UUID) connection.Edge {
	e, err := connection.NewEdge(a, b, nil)
	if err != nil {
		panic(err)
	}
	return e
}
