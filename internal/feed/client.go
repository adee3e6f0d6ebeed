package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/01moynul/projecthub-golang/internal/models"
)

// ErrStatus is wrapped by errors for non-2xx API responses.
var ErrStatus = errors.New("unexpected response status")

type listPage struct {
	Notifications []*models.Notification `json:"notifications"`
	Pagination    struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
	UnreadCount int                      `json:"unreadCount"`
	Stats       models.NotificationStats `json:"stats"`
}

// api is a thin REST client for the notification endpoints.
type api struct {
	baseURL string
	token   string
	http    *http.Client
}

func (a *api) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	return req, nil
}

func (a *api) do(ctx context.Context, method, path string, query url.Values, out any) error {
	req, err := a.newRequest(ctx, method, path, query)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, body.Error)
}

func (a *api) list(ctx context.Context, page, limit int) (*listPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out listPage
	if err := a.do(ctx, http.MethodGet, "/notifications", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *api) markAsRead(ctx context.Context, id int64) error {
	return a.do(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

func (a *api) markAllAsRead(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil)
}

func (a *api) delete(ctx context.Context, id int64) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/notifications/%d", id), nil, nil)
}

// openStream starts the event stream; the caller closes the body.
func (a *api) openStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/notifications/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}
