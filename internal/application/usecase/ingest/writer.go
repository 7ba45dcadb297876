package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/domain/company"
	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/internal/domain/education"
	"github.com/khoahotran/linkgraph/internal/domain/institution"
	"github.com/khoahotran/linkgraph/internal/domain/position"
	"github.com/khoahotran/linkgraph/internal/domain/skill"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

// BatchResult summarizes a best-effort batch. Failures hold one
// EntityWriteFailure per row that could not be written.
type BatchResult struct {
	Written        int
	LookupsCreated int
	Failures       []error
}

func (b *BatchResult) fail(entity string, index int, err error) {
	b.Failures = append(b.Failures, apperror.NewEntityWrite(entity, fmt.Sprintf("row %d", index+1), err))
}

// EditResult counts the rows touched by a profile edit.
type EditResult struct {
	Inserted int
	Updated  int
	Deleted  int
}

// GraphWriter persists normalized entities and connection edges.
type GraphWriter struct {
	companies    company.Repository
	institutions institution.Repository
	positions    position.Repository
	education    education.Repository
	skills       skill.Repository
	connections  connection.Repository
	logger       logger.Logger
}

func NewGraphWriter(
	c company.Repository,
	i institution.Repository,
	p position.Repository,
	e education.Repository,
	s skill.Repository,
	conn connection.Repository,
	log logger.Logger,
) *GraphWriter {
	return &GraphWriter{
		companies:    c,
		institutions: i,
		positions:    p,
		education:    e,
		skills:       s,
		connections:  conn,
		logger:       log,
	}
}

// Connect stores the undirected edge between a and b. It reports false when
// the edge already existed.
func (w *GraphWriter) Connect(ctx context.Context, a, b uuid.UUID, connectedOn *time.Time) (bool, error) {
	edge, err := connection.NewEdge(a, b, connectedOn)
	if err != nil {
		return false, err
	}
	exists, err := w.connections.Exists(ctx, edge)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	return w.connections.Insert(ctx, edge)
}

// companyID resolves name to a company id. A failed lookup leaves the
// position without a company instead of dropping it.
func (w *GraphWriter) companyID(ctx context.Context, name string, res *BatchResult) *uuid.UUID {
	c, created, err := w.companies.FindOrCreate(ctx, name)
	if err != nil {
		w.logger.Warn("Company get-or-create failed", zap.String("company", name), zap.Error(err))
		return nil
	}
	if created && res != nil {
		res.LookupsCreated++
	}
	return &c.ID
}

func (w *GraphWriter) institutionID(ctx context.Context, name string, res *BatchResult) *uuid.UUID {
	i, created, err := w.institutions.FindOrCreate(ctx, name)
	if err != nil {
		w.logger.Warn("Institution get-or-create failed", zap.String("institution", name), zap.Error(err))
		return nil
	}
	if created && res != nil {
		res.LookupsCreated++
	}
	return &i.ID
}

func (w *GraphWriter) WritePositions(ctx context.Context, profileID uuid.UUID, recs []export.PositionRecord) BatchResult {
	var res BatchResult
	for i, rec := range recs {
		if ctx.Err() != nil {
			res.fail("position", i, ctx.Err())
			break
		}
		p := &position.Position{
			ID:          uuid.New(),
			ProfileID:   profileID,
			CompanyID:   w.companyID(ctx, rec.CompanyName, &res),
			CompanyName: rec.CompanyName,
			Title:       rec.Title,
			Description: rec.Description,
			Location:    rec.Location,
			StartDate:   rec.StartDate,
			EndDate:     rec.EndDate,
		}
		inserted, err := w.positions.InsertIfAbsent(ctx, p)
		if err != nil {
			res.fail("position", i, err)
			continue
		}
		if inserted {
			res.Written++
		}
	}
	return res
}

func (w *GraphWriter) WriteEducation(ctx context.Context, profileID uuid.UUID, recs []export.EducationRecord) BatchResult {
	var res BatchResult
	for i, rec := range recs {
		if ctx.Err() != nil {
			res.fail("education", i, ctx.Err())
			break
		}
		e := &education.Education{
			ID:              uuid.New(),
			ProfileID:       profileID,
			InstitutionID:   w.institutionID(ctx, rec.SchoolName, &res),
			InstitutionName: rec.SchoolName,
			Degree:          rec.Degree,
			Notes:           rec.Notes,
			Activities:      rec.Activities,
			StartDate:       rec.StartDate,
			EndDate:         rec.EndDate,
		}
		inserted, err := w.education.InsertIfAbsent(ctx, e)
		if err != nil {
			res.fail("education", i, err)
			continue
		}
		if inserted {
			res.Written++
		}
	}
	return res
}

func (w *GraphWriter) WriteSkills(ctx context.Context, profileID uuid.UUID, recs []export.SkillRecord) BatchResult {
	var res BatchResult
	for i, rec := range recs {
		if ctx.Err() != nil {
			res.fail("skill", i, ctx.Err())
			break
		}
		added, err := w.skills.Add(ctx, profileID, rec.Name)
		if err != nil {
			res.fail("skill", i, err)
			continue
		}
		if added {
			res.Written++
		}
	}
	return res
}

// ReplacePositions makes submitted the complete position list of profileID:
// rows with a known id are updated, rows without an id are inserted and the
// rest are deleted.
func (w *GraphWriter) ReplacePositions(ctx context.Context, profileID uuid.UUID, submitted []position.Position) (*EditResult, error) {
	current, err := w.positions.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	d, err := diffByID(idsOf(current, func(p position.Position) uuid.UUID { return p.ID }), submitted,
		func(p position.Position) uuid.UUID { return p.ID })
	if err != nil {
		return nil, err
	}

	if err := w.positions.Delete(ctx, profileID, d.remove); err != nil {
		return nil, err
	}
	for _, p := range d.update {
		p.ProfileID = profileID
		p.CompanyID = w.companyID(ctx, p.CompanyName, nil)
		if err := w.positions.Update(ctx, &p); err != nil {
			return nil, err
		}
	}
	inserted := 0
	for _, p := range d.insert {
		p.ID = uuid.New()
		p.ProfileID = profileID
		p.CompanyID = w.companyID(ctx, p.CompanyName, nil)
		ok, err := w.positions.InsertIfAbsent(ctx, &p)
		if err != nil {
			return nil, err
		}
		if ok {
			inserted++
		}
	}
	return &EditResult{Inserted: inserted, Updated: len(d.update), Deleted: len(d.remove)}, nil
}

func (w *GraphWriter) ReplaceEducation(ctx context.Context, profileID uuid.UUID, submitted []education.Education) (*EditResult, error) {
	current, err := w.education.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	d, err := diffByID(idsOf(current, func(e education.Education) uuid.UUID { return e.ID }), submitted,
		func(e education.Education) uuid.UUID { return e.ID })
	if err != nil {
		return nil, err
	}

	if err := w.education.Delete(ctx, profileID, d.remove); err != nil {
		return nil, err
	}
	for _, e := range d.update {
		e.ProfileID = profileID
		e.InstitutionID = w.institutionID(ctx, e.InstitutionName, nil)
		if err := w.education.Update(ctx, &e); err != nil {
			return nil, err
		}
	}
	inserted := 0
	for _, e := range d.insert {
		e.ID = uuid.New()
		e.ProfileID = profileID
		e.InstitutionID = w.institutionID(ctx, e.InstitutionName, nil)
		ok, err := w.education.InsertIfAbsent(ctx, &e)
		if err != nil {
			return nil, err
		}
		if ok {
			inserted++
		}
	}
	return &EditResult{Inserted: inserted, Updated: len(d.update), Deleted: len(d.remove)}, nil
}

func (w *GraphWriter) ReplaceSkills(ctx context.Context, profileID uuid.UUID, submitted []skill.Skill) (*EditResult, error) {
	current, err := w.skills.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	d, err := diffByID(idsOf(current, func(s skill.Skill) uuid.UUID { return s.ID }), submitted,
		func(s skill.Skill) uuid.UUID { return s.ID })
	if err != nil {
		return nil, err
	}

	if err := w.skills.Delete(ctx, profileID, d.remove); err != nil {
		return nil, err
	}
	for _, s := range d.update {
		s.ProfileID = profileID
		if err := w.skills.Rename(ctx, &s); err != nil {
			return nil, err
		}
	}
	inserted := 0
	for _, s := range d.insert {
		ok, err := w.skills.Add(ctx, profileID, s.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			inserted++
		}
	}
	return &EditResult{Inserted: inserted, Updated: len(d.update), Deleted: len(d.remove)}, nil
}

type diff[T any] struct {
	update []T
	insert []T
	remove []uuid.UUID
}

// diffByID partitions submitted against the ids that currently exist. An id
// that does not belong to the current set is rejected.
func diffByID[T any](current []uuid.UUID, submitted []T, id func(T) uuid.UUID) (*diff[T], error) {
	known := make(map[uuid.UUID]bool, len(current))
	for _, c := range current {
		known[c] = false
	}

	d := &diff[T]{}
	for _, s := range submitted {
		sid := id(s)
		if sid == uuid.Nil {
			d.insert = append(d.insert, s)
			continue
		}
		if _, ok := known[sid]; !ok {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("row %s does not belong to this profile", sid), nil)
		}
		known[sid] = true
		d.update = append(d.update, s)
	}
	for _, c := range current {
		if !known[c] {
			d.remove = append(d.remove, c)
		}
	}
	return d, nil
}

func idsOf[T any](rows []T, id func(T) uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		out = append(out, id(r))
	}
	return out
}
