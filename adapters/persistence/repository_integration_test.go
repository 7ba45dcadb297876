package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/suite"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/internal/domain/position"
	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

const embeddingDims = 768

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	ctx         context.Context
	dbPool      *pgxpool.Pool
	pgContainer *postgres.PostgresContainer
	profiles    profile.Repository
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	pgContainer, err := postgres.Run(s.ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(1*time.Minute),
		),
	)
	if err != nil {
		s.T().Fatalf("Failed to start postgres container: %s", err)
	}
	s.pgContainer = pgContainer

	dsn, err := pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	if err != nil {
		s.T().Fatalf("Failed to get connection string: %s", err)
	}

	if err := Migrate(dsn, "file://../../migrations", logger.NewNop()); err != nil {
		s.T().Fatalf("Failed to run migrations: %s", err)
	}

	pool, err := newPool(s.ctx, dsn, logger.NewNop())
	if err != nil {
		s.T().Fatalf("Failed to create pgxpool: %s", err)
	}
	s.dbPool = pool
	s.profiles = NewPostgresProfileRepo(pool, logger.NewNop())
}

func (s *RepositoryIntegrationTestSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, `TRUNCATE profiles, companies, institutions CASCADE`)
	s.Require().NoError(err)
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(context.Background()); err != nil {
			s.T().Fatalf("Failed to terminate postgres container: %s", err)
		}
	}
}

func TestRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode.")
	}
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func strp(s string) *string { return &s }

func (s *RepositoryIntegrationTestSuite) shadow(slug string) *profile.Profile {
	p, err := s.profiles.CreateShadow(s.ctx, profile.ShadowSeed{Slug: slug})
	s.Require().NoError(err)
	s.Require().NotNil(p)
	return p
}

func (s *RepositoryIntegrationTestSuite) Test_CreateShadow_ConflictReturnsNil() {
	first, err := s.profiles.CreateShadow(s.ctx, profile.ShadowSeed{Slug: "alan", FirstName: strp("Alan")})
	s.Require().NoError(err)
	s.Require().NotNil(first)
	s.True(first.IsShadow)

	second, err := s.profiles.CreateShadow(s.ctx, profile.ShadowSeed{Slug: "alan", FirstName: strp("Other")})
	s.NoError(err)
	s.Nil(second)

	found, err := s.profiles.FindBySlug(s.ctx, "alan")
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
	s.Equal("Alan", *found.FirstName)
}

func (s *RepositoryIntegrationTestSuite) Test_FillBlanks_KeepsExistingValues() {
	p, err := s.profiles.CreateShadow(s.ctx, profile.ShadowSeed{Slug: "grace", Headline: strp("Admiral")})
	s.Require().NoError(err)

	filled, err := s.profiles.FillBlanks(s.ctx, p.ID, profile.Details{FirstName: strp("Grace"), Headline: strp("Programmer")})
	s.Require().NoError(err)
	s.Equal("Grace", *filled.FirstName)
	s.Equal("Admiral", *filled.Headline)

	_, err = s.profiles.FindBySlug(s.ctx, "nobody")
	s.ErrorIs(err, profile.ErrProfileNotFound)
}

func (s *RepositoryIntegrationTestSuite) Test_FindOrCreateByAccount() {
	a, err := s.profiles.FindOrCreateByAccount(s.ctx, "acct-1", strp("a@example.com"))
	s.Require().NoError(err)
	b, err := s.profiles.FindOrCreateByAccount(s.ctx, "acct-1", nil)
	s.Require().NoError(err)
	s.Equal(a.ID, b.ID)
	s.False(b.IsShadow)
}

func (s *RepositoryIntegrationTestSuite) Test_ClaimSlug_MergesShadow() {
	conns := NewPostgresConnectionRepo(s.dbPool)
	skills := NewPostgresSkillRepo(s.dbPool)

	owner, err := s.profiles.FindOrCreateByAccount(s.ctx, "acct-ada", nil)
	s.Require().NoError(err)
	_, err = s.profiles.UpdateDetails(s.ctx, owner.ID, profile.Details{FirstName: strp("Ada")})
	s.Require().NoError(err)

	shadow := s.shadow("ada")
	_, err = s.profiles.FillBlanks(s.ctx, shadow.ID, profile.Details{Summary: strp("From an export"), FirstName: strp("A.")})
	s.Require().NoError(err)
	bob := s.shadow("bob")
	edge, err := connection.NewEdge(shadow.ID, bob.ID, nil)
	s.Require().NoError(err)
	_, err = conns.Insert(s.ctx, edge)
	s.Require().NoError(err)
	_, err = skills.Add(s.ctx, shadow.ID, "Poetry")
	s.Require().NoError(err)

	res, err := s.profiles.ClaimSlug(s.ctx, owner.ID, "ada")
	s.Require().NoError(err)
	s.Require().NotNil(res.MergedShadowID)
	s.Equal(shadow.ID, *res.MergedShadowID)

	claimed, err := s.profiles.FindBySlug(s.ctx, "ada")
	s.Require().NoError(err)
	s.Equal(owner.ID, claimed.ID)
	s.False(claimed.IsShadow)
	s.Equal("Ada", *claimed.FirstName)
	s.Equal("From an export", *claimed.Summary)

	_, err = s.profiles.FindByID(s.ctx, shadow.ID)
	s.ErrorIs(err, profile.ErrProfileNotFound)

	moved, err := connection.NewEdge(owner.ID, bob.ID, nil)
	s.Require().NoError(err)
	exists, err := conns.Exists(s.ctx, moved)
	s.Require().NoError(err)
	s.True(exists)

	ownSkills, err := skills.ListByProfile(s.ctx, owner.ID)
	s.Require().NoError(err)
	s.Len(ownSkills, 1)

	again, err := s.profiles.ClaimSlug(s.ctx, owner.ID, "ada")
	s.Require().NoError(err)
	s.True(again.AlreadyHeld)
}

func (s *RepositoryIntegrationTestSuite) Test_ClaimSlug_RealHolderWins() {
	first, err := s.profiles.FindOrCreateByAccount(s.ctx, "acct-1", nil)
	s.Require().NoError(err)
	second, err := s.profiles.FindOrCreateByAccount(s.ctx, "acct-2", nil)
	s.Require().NoError(err)

	_, err = s.profiles.ClaimSlug(s.ctx, first.ID, "ada")
	s.Require().NoError(err)

	_, err = s.profiles.ClaimSlug(s.ctx, second.ID, "ada")
	s.ErrorIs(err, profile.ErrSlugClaimed)

	loser, err := s.profiles.FindByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Nil(loser.LinkedInSlug)
	s.Require().NotNil(loser.ClaimConflictSlug)
	s.Equal("ada", *loser.ClaimConflictSlug)
}

func (s *RepositoryIntegrationTestSuite) Test_Connections_AreUndirected() {
	conns := NewPostgresConnectionRepo(s.dbPool)
	a, b := s.shadow("a"), s.shadow("b")
	on := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)

	e1, err := connection.NewEdge(a.ID, b.ID, &on)
	s.Require().NoError(err)
	e2, err := connection.NewEdge(b.ID, a.ID, nil)
	s.Require().NoError(err)

	inserted, err := conns.Insert(s.ctx, e1)
	s.Require().NoError(err)
	s.True(inserted)
	inserted, err = conns.Insert(s.ctx, e2)
	s.Require().NoError(err)
	s.False(inserted)

	n, err := conns.CountByProfile(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	edges, err := conns.ListByProfile(s.ctx, a.ID, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(edges, 1)
	s.True(on.Equal(*edges[0].ConnectedOn))

	_, err = s.dbPool.Exec(s.ctx, `INSERT INTO connections (profile_a, profile_b) VALUES ($1, $2)`, e1.B, e1.A)
	s.Error(err)
}

func (s *RepositoryIntegrationTestSuite) Test_Positions_NaturalKeyIsIdempotent() {
	positions := NewPostgresPositionRepo(s.dbPool)
	companies := NewPostgresCompanyRepo(s.dbPool)
	owner := s.shadow("owner")

	c, created, err := companies.FindOrCreate(s.ctx, "Acme")
	s.Require().NoError(err)
	s.True(created)
	again, created, err := companies.FindOrCreate(s.ctx, "Acme")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(c.ID, again.ID)

	for i := 0; i < 2; i++ {
		inserted, err := positions.InsertIfAbsent(s.ctx, &position.Position{
			ID:          uuid.New(),
			ProfileID:   owner.ID,
			CompanyID:   &c.ID,
			CompanyName: "Acme",
			Title:       "Engineer",
		})
		s.Require().NoError(err)
		s.Equal(i == 0, inserted)
	}

	list, err := positions.ListByProfile(s.ctx, owner.ID)
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Nil(list[0].StartDate)
}

func unitVector(hot int) pgvector.Vector {
	v := make([]float32, embeddingDims)
	v[hot] = 1
	return pgvector.NewVector(v)
}

func (s *RepositoryIntegrationTestSuite) Test_Search() {
	searchRepo := NewPostgresSearchRepo(s.dbPool, logger.NewNop())
	ada, err := s.profiles.CreateShadow(s.ctx, profile.ShadowSeed{Slug: "ada", FirstName: strp("Ada"), LastName: strp("Lovelace"), Headline: strp("Analyst")})
	s.Require().NoError(err)
	alan, err := s.profiles.CreateShadow(s.ctx, profile.ShadowSeed{Slug: "alan", FirstName: strp("Alan"), LastName: strp("Turing")})
	s.Require().NoError(err)

	hits, err := searchRepo.Keyword(s.ctx, "lovelace", 10)
	s.Require().NoError(err)
	s.Require().Len(hits, 1)
	s.Equal(ada.ID, hits[0].ID)

	hits, err = searchRepo.Keyword(s.ctx, "Tur", 10)
	s.Require().NoError(err)
	s.Require().Len(hits, 1)
	s.Equal(alan.ID, hits[0].ID)

	s.Require().NoError(searchRepo.SetEmbedding(s.ctx, ada.ID, unitVector(0)))
	s.Require().NoError(searchRepo.SetEmbedding(s.ctx, alan.ID, unitVector(1)))

	near, err := searchRepo.Nearest(s.ctx, unitVector(1), 2, nil)
	s.Require().NoError(err)
	s.Require().Len(near, 2)
	s.Equal(alan.ID, near[0].ID)
	s.InDelta(1.0, near[0].Score, 1e-5)

	filtered, err := searchRepo.Nearest(s.ctx, unitVector(1), 2, []uuid.UUID{ada.ID})
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal(ada.ID, filtered[0].ID)
}
