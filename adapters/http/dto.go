package http

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khoahotran/linkgraph/internal/application/usecase/ingest"
	profileUC "github.com/khoahotran/linkgraph/internal/application/usecase/profile"
	"github.com/khoahotran/linkgraph/internal/domain/education"
	"github.com/khoahotran/linkgraph/internal/domain/position"
	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/internal/domain/search"
	"github.com/khoahotran/linkgraph/internal/domain/skill"
	"github.com/khoahotran/linkgraph/internal/domain/upload"
)

// Profile DTOs

type ProfileSummaryDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Headline     *string `json:"headline"`
	LinkedInSlug *string `json:"linkedin_slug"`
	IsShadow     bool    `json:"is_shadow"`
}

type PositionDTO struct {
	ID          string     `json:"id"`
	CompanyName string     `json:"company_name"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type EducationDTO struct {
	ID              string     `json:"id"`
	InstitutionName string     `json:"institution_name"`
	Degree          *string    `json:"degree"`
	Notes           *string    `json:"notes"`
	Activities      *string    `json:"activities"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
}

type SkillDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProfileDTO struct {
	ID                string         `json:"id"`
	FirstName         *string        `json:"first_name"`
	LastName          *string        `json:"last_name"`
	Headline          *string        `json:"headline"`
	Summary           *string        `json:"summary"`
	Industry          *string        `json:"industry"`
	Location          *string        `json:"location"`
	Email             *string        `json:"email,omitempty"`
	LinkedInSlug      *string        `json:"linkedin_slug"`
	IsShadow          bool           `json:"is_shadow"`
	ClaimConflictSlug *string        `json:"claim_conflict_slug,omitempty"`
	Positions         []PositionDTO  `json:"positions"`
	Education         []EducationDTO `json:"education"`
	Skills            []SkillDTO     `json:"skills"`
	ConnectionCount   int            `json:"connection_count"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func ToProfileSummaryDTO(p *profile.Profile) ProfileSummaryDTO {
	return ProfileSummaryDTO{
		ID:           p.ID.String(),
		Name:         p.DisplayName(),
		Headline:     p.Headline,
		LinkedInSlug: p.LinkedInSlug,
		IsShadow:     p.IsShadow,
	}
}

func ToProfileDTO(out *profileUC.GetProfileOutput) ProfileDTO {
	p := out.Profile
	dto := ProfileDTO{
		ID:                p.ID.String(),
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Headline:          p.Headline,
		Summary:           p.Summary,
		Industry:          p.Industry,
		Location:          p.Location,
		Email:             p.Email,
		LinkedInSlug:      p.LinkedInSlug,
		IsShadow:          p.IsShadow,
		ClaimConflictSlug: p.ClaimConflictSlug,
		ConnectionCount:   out.ConnectionCount,
		UpdatedAt:         p.UpdatedAt,
		Positions:         make([]PositionDTO, len(out.Positions)),
		Education:         make([]EducationDTO, len(out.Education)),
		Skills:            make([]SkillDTO, len(out.Skills)),
	}
	for i, pos := range out.Positions {
		dto.Positions[i] = PositionDTO{
			ID:          pos.ID.String(),
			CompanyName: pos.CompanyName,
			Title:       pos.Title,
			Description: pos.Description,
			Location:    pos.Location,
			StartDate:   pos.StartDate,
			EndDate:     pos.EndDate,
		}
	}
	for i, e := range out.Education {
		dto.Education[i] = EducationDTO{
			ID:              e.ID.String(),
			InstitutionName: e.InstitutionName,
			Degree:          e.Degree,
			Notes:           e.Notes,
			Activities:      e.Activities,
			StartDate:       e.StartDate,
			EndDate:         e.EndDate,
		}
	}
	for i, s := range out.Skills {
		dto.Skills[i] = SkillDTO{ID: s.ID.String(), Name: s.Name}
	}
	return dto
}

// UpdateProfileRequest edits the caller's profile. Omitted or null lists are
// left untouched; an empty list clears them. Rows without an id are added.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Headline  *string `json:"headline"`
	Summary   *string `json:"summary"`
	Industry  *string `json:"industry"`
	Location  *string `json:"location"`
	Email     *string `json:"email"`

	Positions []struct {
		ID          *uuid.UUID `json:"id"`
		CompanyName string     `json:"company_name"`
		Title       string     `json:"title"`
		Description *string    `json:"description"`
		Location    *string    `json:"location"`
		StartDate   *time.Time `json:"start_date"`
		EndDate     *time.Time `json:"end_date"`
	} `json:"positions"`
	Education []struct {
		ID              *uuid.UUID `json:"id"`
		InstitutionName string     `json:"institution_name"`
		Degree          *string    `json:"degree"`
		Notes           *string    `json:"notes"`
		Activities      *string    `json:"activities"`
		StartDate       *time.Time `json:"start_date"`
		EndDate         *time.Time `json:"end_date"`
	} `json:"education"`
	Skills []struct {
		ID   *uuid.UUID `json:"id"`
		Name string     `json:"name"`
	} `json:"skills"`
}

func idOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func (req *UpdateProfileRequest) ToInput(profileID uuid.UUID) profileUC.UpdateProfileInput {
	in := profileUC.UpdateProfileInput{
		ProfileID: profileID,
		Details: profile.Details{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Headline:  req.Headline,
			Summary:   req.Summary,
			Industry:  req.Industry,
			Location:  req.Location,
			Email:     req.Email,
		},
	}
	if req.Positions != nil {
		in.Positions = make([]position.Position, len(req.Positions))
		for i, p := range req.Positions {
			in.Positions[i] = position.Position{
				ID:          idOrNil(p.ID),
				CompanyName: strings.TrimSpace(p.CompanyName),
				Title:       strings.TrimSpace(p.Title),
				Description: p.Description,
				Location:    p.Location,
				StartDate:   p.StartDate,
				EndDate:     p.EndDate,
			}
		}
	}
	if req.Education != nil {
		in.Education = make([]education.Education, len(req.Education))
		for i, e := range req.Education {
			in.Education[i] = education.Education{
				ID:              idOrNil(e.ID),
				InstitutionName: strings.TrimSpace(e.InstitutionName),
				Degree:          e.Degree,
				Notes:           e.Notes,
				Activities:      e.Activities,
				StartDate:       e.StartDate,
				EndDate:         e.EndDate,
			}
		}
	}
	if req.Skills != nil {
		in.Skills = make([]skill.Skill, len(req.Skills))
		for i, s := range req.Skills {
			in.Skills[i] = skill.Skill{ID: idOrNil(s.ID), Name: strings.TrimSpace(s.Name)}
		}
	}
	return in
}

type ConnectionDTO struct {
	Profile     ProfileSummaryDTO `json:"profile"`
	ConnectedOn *time.Time        `json:"connected_on"`
}

type ConnectionListDTO struct {
	Connections []ConnectionDTO `json:"connections"`
	Total       int             `json:"total"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
}

// Import DTOs

type ImportResultDTO struct {
	RunID     string           `json:"run_id"`
	State     upload.State     `json:"state"`
	ProfileID string           `json:"profile_id"`
	Counts    upload.Counts    `json:"counts"`
	Warnings  []upload.Warning `json:"warnings"`
}

func ToImportResultDTO(out *ingest.IngestOutput) ImportResultDTO {
	dto := ImportResultDTO{
		RunID:    out.RunID.String(),
		State:    upload.StateDone,
		Counts:   out.Counts,
		Warnings: out.Warnings,
	}
	if out.Profile != nil {
		dto.ProfileID = out.Profile.ID.String()
	}
	return dto
}

// Search DTOs

type SearchResultDTO struct {
	ID       string  `json:"id"`
	Score    float32 `json:"score"`
	Name     string  `json:"name"`
	Headline *string `json:"headline"`
	IsShadow bool    `json:"is_shadow"`
}

func ToSearchResultDTO(r search.Result) SearchResultDTO {
	p := profile.Profile{FirstName: r.FirstName, LastName: r.LastName}
	return SearchResultDTO{
		ID:       r.ID.String(),
		Score:    r.Score,
		Name:     p.DisplayName(),
		Headline: r.Headline,
		IsShadow: r.IsShadow,
	}
}
