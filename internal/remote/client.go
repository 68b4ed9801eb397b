package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/msomdec/color-hunt/internal/domain"
)

// Client talks to the color-hunt backend. It implements
// domain.ColorAssigner, domain.RemoteSync and domain.HistoryLister.
type Client struct {
	http     *resty.Client
	identity domain.IdentityStore

	mu sync.Mutex
}

// New creates a client for the backend at baseURL. The device identity is
// cached in identity.
func New(baseURL string, timeout time.Duration, identity domain.IdentityStore) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", "colorhunt-cli/1.0").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{http: httpClient, identity: identity}
}

type errorResponse struct {
	Error string `json:"error"`
}

type deviceResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type colorResponse struct {
	Color struct {
		Name    string `json:"name"`
		Hex     string `json:"hex"`
		English string `json:"english"`
		Korean  string `json:"korean"`
	} `json:"color"`
	Date string `json:"date"`
}

type photoResponse struct {
	PhotoID      string `json:"photoId"`
	OriginalURL  string `json:"originalUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type sessionResponse struct {
	Photos []struct {
		ID       string `json:"id"`
		Position int    `json:"position"`
	} `json:"photos"`
}

type collageResponse struct {
	CollageID string `json:"collageId"`
}

type historyResponse struct {
	Collages []struct {
		ID        string    `json:"id"`
		SessionID string    `json:"sessionId"`
		Color     string    `json:"color"`
		Date      string    `json:"date"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"collages"`
	HasMore bool `json:"hasMore"`
}

type statsResponse struct {
	Stats []struct {
		Color    string `json:"color"`
		Count    int    `json:"count"`
		LastDate string `json:"lastDate"`
	} `json:"stats"`
}

// Register returns the cached device identity, registering with the backend
// when there is none yet.
func (c *Client) Register(ctx context.Context) (*domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.identity.Get(ctx)
	switch {
	case err == nil && id.Token != "":
		return id, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("load identity: %w", err)
	}
	userID := ""
	if id != nil {
		userID = id.UserID
	}
	return c.register(ctx, userID)
}

// register runs with c.mu held.
func (c *Client) register(ctx context.Context, userID string) (*domain.Identity, error) {
	var resp deviceResponse
	var apiErr errorResponse
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"userId": userID}).
		SetResult(&resp).
		SetError(&apiErr).
		Post("/api/device")
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	if httpResp.IsError() {
		return nil, statusError("register device", httpResp, apiErr)
	}

	identity := &domain.Identity{UserID: resp.UserID, Token: resp.Token, CreatedAt: time.Now().UTC()}
	if err := c.identity.Save(ctx, identity); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	slog.Info("device registered", "user", identity.UserID)
	return identity, nil
}

// authed runs send with a bearer token. A 401 re-registers the same user
// once and retries.
func (c *Client) authed(ctx context.Context, op string, send func(r *resty.Request) (*resty.Response, error)) error {
	identity, err := c.Register(ctx)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		var apiErr errorResponse
		r := c.http.R().SetContext(ctx).SetAuthToken(identity.Token).SetError(&apiErr)
		httpResp, err := send(r)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if httpResp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
			c.mu.Lock()
			identity, err = c.register(ctx, identity.UserID)
			c.mu.Unlock()
			if err != nil {
				return err
			}
			continue
		}
		if httpResp.IsError() {
			return statusError(op, httpResp, apiErr)
		}
		return nil
	}
}

func statusError(op string, resp *resty.Response, apiErr errorResponse) error {
	msg := apiErr.Error
	if msg == "" {
		msg = resp.Status()
	}
	var sentinel error
	switch resp.StatusCode() {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = domain.ErrInvalidInput
	case http.StatusUnauthorized:
		sentinel = domain.ErrUnauthorized
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrSessionCompleted
	case http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimited
	default:
		return fmt.Errorf("%s: backend error (%d): %s", op, resp.StatusCode(), msg)
	}
	return fmt.Errorf("%w: %s: %s", sentinel, op, msg)
}

// RequestColor asks the backend for today's color. userID is implied by
// the device token.
func (c *Client) RequestColor(ctx context.Context, _ string, exclude string) (*domain.ColorAssignment, error) {
	var resp colorResponse
	err := c.authed(ctx, "request color", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(map[string]string{"excludeColor": exclude}).SetResult(&resp).Post("/api/color/new")
	})
	if err != nil {
		return nil, err
	}
	color := domain.Color{
		Name:    resp.Color.Name,
		Hex:     resp.Color.Hex,
		English: resp.Color.English,
		Korean:  resp.Color.Korean,
	}
	return &domain.ColorAssignment{Color: color, Date: resp.Date}, nil
}

func (c *Client) StartSession(ctx context.Context, session *domain.Session) error {
	return c.authed(ctx, "start session", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(map[string]any{
			"sessionId":   session.ID,
			"color":       session.Color.Name,
			"targetCount": session.TargetCount,
		}).Post("/api/session/start")
	})
}

func (c *Client) UploadPhoto(ctx context.Context, sessionID string, position int, full, thumbnail []byte) (*domain.UploadedPhoto, error) {
	var resp photoResponse
	err := c.authed(ctx, "upload photo", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetMultipartFormData(map[string]string{
				"sessionId": sessionID,
				"position":  strconv.Itoa(position),
			}).
			SetMultipartField("image", "original.jpg", "image/jpeg", bytes.NewReader(full)).
			SetMultipartField("thumbnail", "thumbnail.jpg", "image/jpeg", bytes.NewReader(thumbnail)).
			SetResult(&resp).
			Post("/api/photo/add")
	})
	if err != nil {
		return nil, err
	}
	return &domain.UploadedPhoto{
		PhotoID:      resp.PhotoID,
		OriginalURL:  resp.OriginalURL,
		ThumbnailURL: resp.ThumbnailURL,
	}, nil
}

// DeletePhoto looks up the backend photo at position and deletes it. A
// position that is already empty, or a photo that is already gone, is a
// no-op.
func (c *Client) DeletePhoto(ctx context.Context, sessionID string, position int) error {
	var resp sessionResponse
	err := c.authed(ctx, "get session", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", sessionID).SetResult(&resp).Get("/api/session/{id}")
	})
	if err != nil {
		return err
	}

	photoID := ""
	for _, p := range resp.Photos {
		if p.Position == position {
			photoID = p.ID
			break
		}
	}
	if photoID == "" {
		return nil
	}

	err = c.authed(ctx, "delete photo", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("photoId", photoID).Delete("/api/photo/{photoId}")
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (c *Client) CompleteCollage(ctx context.Context, sessionID string, collage []byte) (string, error) {
	var resp collageResponse
	err := c.authed(ctx, "complete collage", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetMultipartFormData(map[string]string{"sessionId": sessionID}).
			SetMultipartField("collage", "collage.jpg", "image/jpeg", bytes.NewReader(collage)).
			SetResult(&resp).
			Post("/api/collage/complete")
	})
	if err != nil {
		return "", err
	}
	return resp.CollageID, nil
}

// ListCompletedCollages pages through the device's history.
func (c *Client) ListCompletedCollages(ctx context.Context, _ string, filter domain.HistoryFilter) ([]domain.CompletedCollage, bool, error) {
	var resp historyResponse
	err := c.authed(ctx, "list history", func(r *resty.Request) (*resty.Response, error) {
		params := map[string]string{}
		if filter.Color != "" {
			params["color"] = filter.Color
		}
		if filter.Limit > 0 {
			params["limit"] = strconv.Itoa(filter.Limit)
		}
		if filter.Offset > 0 {
			params["offset"] = strconv.Itoa(filter.Offset)
		}
		return r.SetQueryParams(params).SetResult(&resp).Get("/api/history")
	})
	if err != nil {
		return nil, false, err
	}
	collages := make([]domain.CompletedCollage, len(resp.Collages))
	for i, item := range resp.Collages {
		collages[i] = domain.CompletedCollage{
			ID:        item.ID,
			SessionID: item.SessionID,
			Color:     item.Color,
			Date:      item.Date,
			CreatedAt: item.CreatedAt,
		}
	}
	return collages, resp.HasMore, nil
}

// Stats returns the device's per-color completion counts.
func (c *Client) Stats(ctx context.Context) ([]domain.ColorStat, error) {
	var resp statsResponse
	err := c.authed(ctx, "collage stats", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&resp).Get("/api/stats")
	})
	if err != nil {
		return nil, err
	}
	stats := make([]domain.ColorStat, len(resp.Stats))
	for i, s := range resp.Stats {
		stats[i] = domain.ColorStat{Color: s.Color, Count: s.Count, LastDate: s.LastDate}
	}
	return stats, nil
}
