// Package memstore is an in-memory implementation of the repository ports,
// used by use case tests.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khoahotran/linkgraph/internal/domain/company"
	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/internal/domain/education"
	"github.com/khoahotran/linkgraph/internal/domain/institution"
	"github.com/khoahotran/linkgraph/internal/domain/position"
	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/internal/domain/skill"
	"github.com/khoahotran/linkgraph/internal/domain/upload"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

type Store struct {
	mu           sync.Mutex
	profiles     map[uuid.UUID]profile.Profile
	companies    map[string]uuid.UUID
	institutions map[string]uuid.UUID
	positions    map[uuid.UUID]position.Position
	education    map[uuid.UUID]education.Education
	skills       map[uuid.UUID]skill.Skill
	edges        map[[2]uuid.UUID]connection.Edge
	uploads      []upload.Upload
	runs         map[uuid.UUID]upload.Run
	runHistory   map[uuid.UUID][]upload.State

	// BeforeShadowInsert runs just before CreateShadow takes the lock. Tests
	// use it to insert a competing row.
	BeforeShadowInsert func(slug string)
	// FailPosition makes InsertIfAbsent fail for matching positions.
	FailPosition func(p *position.Position) error
	// Writes counts every successful mutating call.
	Writes int
}

func New() *Store {
	return &Store{
		profiles:     map[uuid.UUID]profile.Profile{},
		companies:    map[string]uuid.UUID{},
		institutions: map[string]uuid.UUID{},
		positions:    map[uuid.UUID]position.Position{},
		education:    map[uuid.UUID]education.Education{},
		skills:       map[uuid.UUID]skill.Skill{},
		edges:        map[[2]uuid.UUID]connection.Edge{},
		runs:         map[uuid.UUID]upload.Run{},
		runHistory:   map[uuid.UUID][]upload.State{},
	}
}

func (s *Store) Profiles() profile.Repository { return profileRepo{s} }
func (s *Store) Companies() company.Repository { return companyRepo{s} }
func (s *Store) Institutions() institution.Repository { return institutionRepo{s} }
func (s *Store) Positions() position.Repository { return positionRepo{s} }
func (s *Store) Education() education.Repository { return educationRepo{s} }
func (s *Store) Skills() skill.Repository { return skillRepo{s} }
func (s *Store) Connections() connection.Repository { return connectionRepo{s} }
func (s *Store) Uploads() upload.Repository { return uploadRepo{s} }
func (s *Store) Runs() upload.RunStore { return runStore{s} }

// AddProfile inserts p as is, assigning an id when it has none.
func (s *Store) AddProfile(p profile.Profile) profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.profiles[p.ID] = p
	return p
}

func (s *Store) AllProfiles() []profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out
}

func (s *Store) Edges() []connection.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]connection.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out
}

func (s *Store) CompanyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.companies)
}

func (s *Store) InstitutionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.institutions)
}

// RunStates returns every state saved for run id, in order.
func (s *Store) RunStates(id uuid.UUID) []upload.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]upload.State(nil), s.runHistory[id]...)
}

type profileRepo struct{ *Store }

func (r profileRepo) FindByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return &p, nil
}

func (r profileRepo) findBySlugLocked(slug string) (profile.Profile, bool) {
	for _, p := range r.profiles {
		if p.LinkedInSlug != nil && *p.LinkedInSlug == slug {
			return p, true
		}
	}
	return profile.Profile{}, false
}

func (r profileRepo) FindBySlug(_ context.Context, slug string) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.findBySlugLocked(slug)
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return &p, nil
}

func (r profileRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]profile.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r profileRepo) FindOrCreateByAccount(_ context.Context, accountID string, email *string) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.AccountID != nil && *p.AccountID == accountID {
			return &p, nil
		}
	}
	now := time.Now().UTC()
	p := profile.Profile{ID: uuid.New(), AccountID: &accountID, Email: email, CreatedAt: now, UpdatedAt: now}
	r.profiles[p.ID] = p
	r.Writes++
	return &p, nil
}

func (r profileRepo) CreateShadow(_ context.Context, seed profile.ShadowSeed) (*profile.Profile, error) {
	if r.BeforeShadowInsert != nil {
		r.BeforeShadowInsert(seed.Slug)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.findBySlugLocked(seed.Slug); exists {
		return nil, nil
	}
	slug := seed.Slug
	now := time.Now().UTC()
	p := profile.Profile{
		ID:           uuid.New(),
		FirstName:    seed.FirstName,
		LastName:     seed.LastName,
		Headline:     seed.Headline,
		LinkedInSlug: &slug,
		IsShadow:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.profiles[p.ID] = p
	r.Writes++
	return &p, nil
}

func coalesce(cur, next *string) *string {
	if cur != nil {
		return cur
	}
	return next
}

func override(cur, next *string) *string {
	if next != nil {
		return next
	}
	return cur
}

func apply(p *profile.Profile, d profile.Details, f func(cur, next *string) *string) {
	p.FirstName = f(p.FirstName, d.FirstName)
	p.LastName = f(p.LastName, d.LastName)
	p.Headline = f(p.Headline, d.Headline)
	p.Summary = f(p.Summary, d.Summary)
	p.Industry = f(p.Industry, d.Industry)
	p.Location = f(p.Location, d.Location)
	p.Email = f(p.Email, d.Email)
	p.UpdatedAt = time.Now().UTC()
}

func (r profileRepo) FillBlanks(_ context.Context, id uuid.UUID, d profile.Details) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	apply(&p, d, coalesce)
	r.profiles[id] = p
	r.Writes++
	return &p, nil
}

func (r profileRepo) UpdateDetails(_ context.Context, id uuid.UUID, d profile.Details) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	apply(&p, d, override)
	r.profiles[id] = p
	r.Writes++
	return &p, nil
}

func (r profileRepo) ClaimSlug(_ context.Context, id uuid.UUID, slug string) (*profile.ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	holder, held := r.findBySlugLocked(slug)
	switch {
	case held && holder.ID == id:
		return &profile.ClaimResult{AlreadyHeld: true}, nil
	case held && !holder.IsShadow:
		s := slug
		owner.ClaimConflictSlug = &s
		r.profiles[id] = owner
		return nil, profile.ErrSlugClaimed
	}

	res := &profile.ClaimResult{}
	if held {
		for key, e := range r.edges {
			if e.A != holder.ID && e.B != holder.ID {
				continue
			}
			delete(r.edges, key)
			other := e.Other(holder.ID)
			if other == id {
				continue
			}
			ne, _ := connection.NewEdge(other, id, e.ConnectedOn)
			if _, dup := r.edges[[2]uuid.UUID{ne.A, ne.B}]; !dup {
				r.edges[[2]uuid.UUID{ne.A, ne.B}] = ne
			}
		}
		for pid, p := range r.positions {
			if p.ProfileID == holder.ID {
				p.ProfileID = id
				r.positions[pid] = p
			}
		}
		for eid, e := range r.education {
			if e.ProfileID == holder.ID {
				e.ProfileID = id
				r.education[eid] = e
			}
		}
		for sid, sk := range r.skills {
			if sk.ProfileID == holder.ID {
				delete(r.skills, sid)
				if !r.hasSkillLocked(id, sk.Name) {
					sk.ProfileID = id
					r.skills[sid] = sk
				}
			}
		}
		apply(&owner, profile.Details{
			FirstName: holder.FirstName,
			LastName:  holder.LastName,
			Headline:  holder.Headline,
			Summary:   holder.Summary,
			Industry:  holder.Industry,
			Location:  holder.Location,
		}, coalesce)
		delete(r.profiles, holder.ID)
		merged := holder.ID
		res.MergedShadowID = &merged
	}

	s := slug
	owner.LinkedInSlug = &s
	owner.ClaimConflictSlug = nil
	owner.IsShadow = false
	r.profiles[id] = owner
	r.Writes++
	return res, nil
}

type companyRepo struct{ *Store }

func (r companyRepo) FindOrCreate(_ context.Context, name string) (*company.Company, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.companies[name]; ok {
		return &company.Company{ID: id, Name: name}, false, nil
	}
	id := uuid.New()
	r.companies[name] = id
	r.Writes++
	return &company.Company{ID: id, Name: name}, true, nil
}

type institutionRepo struct{ *Store }

func (r institutionRepo) FindOrCreate(_ context.Context, name string) (*institution.Institution, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.institutions[name]; ok {
		return &institution.Institution{ID: id, Name: name}, false, nil
	}
	id := uuid.New()
	r.institutions[name] = id
	r.Writes++
	return &institution.Institution{ID: id, Name: name}, true, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type positionRepo struct{ *Store }

func (r positionRepo) InsertIfAbsent(_ context.Context, p *position.Position) (bool, error) {
	if r.FailPosition != nil {
		if err := r.FailPosition(p); err != nil {
			return false, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.positions {
		if cur.ProfileID == p.ProfileID && cur.CompanyName == p.CompanyName &&
			cur.Title == p.Title && sameDate(cur.StartDate, p.StartDate) {
			return false, nil
		}
	}
	r.positions[p.ID] = *p
	r.Writes++
	return true, nil
}

func (r positionRepo) ListByProfile(_ context.Context, profileID uuid.UUID) ([]position.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []position.Position{}
	for _, p := range r.positions {
		if p.ProfileID == profileID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r positionRepo) Update(_ context.Context, p *position.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.positions[p.ID]
	if !ok || cur.ProfileID != p.ProfileID {
		return apperror.NewNotFound("position", p.ID.String())
	}
	r.positions[p.ID] = *p
	r.Writes++
	return nil
}

func (r positionRepo) Delete(_ context.Context, profileID uuid.UUID, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if p, ok := r.positions[id]; ok && p.ProfileID == profileID {
			delete(r.positions, id)
			r.Writes++
		}
	}
	return nil
}

type educationRepo struct{ *Store }

func (r educationRepo) InsertIfAbsent(_ context.Context, e *education.Education) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.education {
		if cur.ProfileID == e.ProfileID && cur.InstitutionName == e.InstitutionName &&
			sameStr(cur.Degree, e.Degree) && sameDate(cur.StartDate, e.StartDate) {
			return false, nil
		}
	}
	r.education[e.ID] = *e
	r.Writes++
	return true, nil
}

func (r educationRepo) ListByProfile(_ context.Context, profileID uuid.UUID) ([]education.Education, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []education.Education{}
	for _, e := range r.education {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstitutionName < out[j].InstitutionName })
	return out, nil
}

func (r educationRepo) Update(_ context.Context, e *education.Education) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.education[e.ID]
	if !ok || cur.ProfileID != e.ProfileID {
		return apperror.NewNotFound("education", e.ID.String())
	}
	r.education[e.ID] = *e
	r.Writes++
	return nil
}

func (r educationRepo) Delete(_ context.Context, profileID uuid.UUID, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if e, ok := r.education[id]; ok && e.ProfileID == profileID {
			delete(r.education, id)
			r.Writes++
		}
	}
	return nil
}

type skillRepo struct{ *Store }

func (s *Store) hasSkillLocked(profileID uuid.UUID, name string) bool {
	for _, sk := range s.skills {
		if sk.ProfileID == profileID && sk.Name == name {
			return true
		}
	}
	return false
}

func (r skillRepo) Add(_ context.Context, profileID uuid.UUID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasSkillLocked(profileID, name) {
		return false, nil
	}
	id := uuid.New()
	r.skills[id] = skill.Skill{ID: id, ProfileID: profileID, Name: name}
	r.Writes++
	return true, nil
}

func (r skillRepo) ListByProfile(_ context.Context, profileID uuid.UUID) ([]skill.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []skill.Skill{}
	for _, sk := range r.skills {
		if sk.ProfileID == profileID {
			out = append(out, sk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r skillRepo) Rename(_ context.Context, s *skill.Skill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.skills[s.ID]
	if !ok || cur.ProfileID != s.ProfileID {
		return apperror.NewNotFound("skill", s.ID.String())
	}
	if cur.Name != s.Name && r.hasSkillLocked(s.ProfileID, s.Name) {
		return apperror.NewConflict("skill", "name", s.Name)
	}
	r.skills[s.ID] = *s
	r.Writes++
	return nil
}

func (r skillRepo) Delete(_ context.Context, profileID uuid.UUID, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if sk, ok := r.skills[id]; ok && sk.ProfileID == profileID {
			delete(r.skills, id)
			r.Writes++
		}
	}
	return nil
}

type connectionRepo struct{ *Store }

func (r connectionRepo) Exists(_ context.Context, e connection.Edge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.edges[[2]uuid.UUID{e.A, e.B}]
	return ok, nil
}

func (r connectionRepo) Insert(_ context.Context, e connection.Edge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{e.A, e.B}
	if _, ok := r.edges[key]; ok {
		return false, nil
	}
	r.edges[key] = e
	r.Writes++
	return true, nil
}

func (r connectionRepo) ListByProfile(_ context.Context, profileID uuid.UUID, limit, offset int) ([]connection.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []connection.Edge
	for _, e := range r.edges {
		if e.A == profileID || e.B == profileID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		oi, oj := all[i].Other(profileID), all[j].Other(profileID)
		return bytes.Compare(oi[:], oj[:]) < 0
	})
	if offset >= len(all) {
		return []connection.Edge{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r connectionRepo) CountByProfile(_ context.Context, profileID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.edges {
		if e.A == profileID || e.B == profileID {
			n++
		}
	}
	return n, nil
}

type uploadRepo struct{ *Store }

func (r uploadRepo) Save(_ context.Context, u *upload.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, *u)
	return nil
}

func (r uploadRepo) ListByRun(_ context.Context, runID uuid.UUID) ([]upload.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []upload.Upload{}
	for _, u := range r.uploads {
		if u.RunID == runID {
			out = append(out, u)
		}
	}
	return out, nil
}

type runStore struct{ *Store }

func (r runStore) Save(_ context.Context, run *upload.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	cp.Warnings = append([]upload.Warning(nil), run.Warnings...)
	r.runs[run.ID] = cp
	h := r.runHistory[run.ID]
	if len(h) == 0 || h[len(h)-1] != run.State {
		r.runHistory[run.ID] = append(h, run.State)
	}
	return nil
}

func (r runStore) Get(_ context.Context, id uuid.UUID) (*upload.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, apperror.NewNotFound("import run", id.String())
	}
	return &run, nil
}
