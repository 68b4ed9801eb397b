package handler

import (
	"time"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/service"
)

// ColorDTO is the JSON representation of a palette color.
type ColorDTO struct {
	Name    string `json:"name"`
	Hex     string `json:"hex"`
	English string `json:"english"`
	Korean  string `json:"korean"`
}

func toColorDTO(c domain.Color) ColorDTO {
	return ColorDTO{Name: c.Name, Hex: c.Hex, English: c.English, Korean: c.Korean}
}

// SessionDTO is the JSON representation of a backend hunt session.
type SessionDTO struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Color       string  `json:"color"`
	StartDate   string  `json:"startDate"`
	TargetCount int     `json:"targetCount"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	CompletedAt *string `json:"completedAt"`
}

func toSessionDTO(s *domain.HuntSession) SessionDTO {
	dto := SessionDTO{
		ID:          s.ID,
		UserID:      s.UserID,
		Color:       s.Color,
		StartDate:   s.StartDate,
		TargetCount: s.TargetCount,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
	if s.CompletedAt != nil {
		t := s.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &t
	}
	return dto
}

// PhotoDTO is the JSON representation of uploaded photo metadata.
type PhotoDTO struct {
	ID           string `json:"id"`
	Position     int    `json:"position"`
	OriginalURL  string `json:"originalUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"createdAt"`
}

func imageURL(photoID string, kind domain.PhotoKind) string {
	return "/api/image/" + photoID + "/" + string(kind)
}

func toPhotoDTO(p domain.HuntPhoto) PhotoDTO {
	return PhotoDTO{
		ID:           p.ID,
		Position:     p.Position,
		OriginalURL:  imageURL(p.ID, domain.PhotoKindOriginal),
		ThumbnailURL: imageURL(p.ID, domain.PhotoKindThumbnail),
		Size:         p.Size,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

func toPhotoDTOs(photos []domain.HuntPhoto) []PhotoDTO {
	dtos := make([]PhotoDTO, len(photos))
	for i, p := range photos {
		dtos[i] = toPhotoDTO(p)
	}
	return dtos
}

// ProgressDTO is the JSON representation of session progress.
type ProgressDTO struct {
	Filled      int  `json:"filled"`
	Target      int  `json:"target"`
	Percent     int  `json:"percent"`
	Next        int  `json:"next"`
	CanComplete bool `json:"canComplete"`
}

func toProgressDTO(p service.Progress) ProgressDTO {
	return ProgressDTO{
		Filled:      p.Filled,
		Target:      p.Target,
		Percent:     p.Percent,
		Next:        p.Next,
		CanComplete: p.CanComplete,
	}
}

// CollageDTO is the JSON representation of a completed collage.
type CollageDTO struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Color     string `json:"color"`
	Date      string `json:"date"`
	CreatedAt string `json:"createdAt"`
}

func toCollageDTOs(collages []domain.CompletedCollage) []CollageDTO {
	dtos := make([]CollageDTO, len(collages))
	for i, c := range collages {
		dtos[i] = CollageDTO{
			ID:        c.ID,
			SessionID: c.SessionID,
			Color:     c.Color,
			Date:      c.Date,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

// ColorStatDTO is the JSON representation of per-color completion counts.
type ColorStatDTO struct {
	Color    string `json:"color"`
	Count    int    `json:"count"`
	LastDate string `json:"lastDate"`
}

func toColorStatDTOs(stats []domain.ColorStat) []ColorStatDTO {
	dtos := make([]ColorStatDTO, len(stats))
	for i, s := range stats {
		dtos[i] = ColorStatDTO{Color: s.Color, Count: s.Count, LastDate: s.LastDate}
	}
	return dtos
}
