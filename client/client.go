// Package client is a small Go client for the task API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "http://127.0.0.1:8000/api"

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Meta struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

type Links struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type TaskList struct {
	Data  []Task `json:"data"`
	Meta  Meta   `json:"meta"`
	Links Links  `json:"links"`
}

// ListOptions narrows a listing. Zero values mean "no filter" and page 1.
type ListOptions struct {
	Status string
	Page   int
}

type CreateTask struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// UpdateTask is a partial update. Nil fields are not sent; set
// ClearDescription to send an explicit null description.
type UpdateTask struct {
	Title            *string
	Description      *string
	Status           *string
	ClearDescription bool
}

func (u UpdateTask) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, 3)
	if u.Title != nil {
		body["title"] = *u.Title
	}
	if u.Status != nil {
		body["status"] = *u.Status
	}
	switch {
	case u.ClearDescription:
		body["description"] = nil
	case u.Description != nil:
		body["description"] = *u.Description
	}
	return json.Marshal(body)
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int                 `json:"-"`
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("task api: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsValidation reports whether err is a 422 from the API.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) List(ctx context.Context, opts ListOptions) (TaskList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out TaskList
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, id int64) (Task, error) {
	var out struct {
		Data Task `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, taskPath(id), nil, &out)
	return out.Data, err
}

func (c *Client) Create(ctx context.Context, in CreateTask) (Task, error) {
	var out struct {
		Data Task `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, "/tasks", in, &out)
	return out.Data, err
}

func (c *Client) Update(ctx context.Context, id int64, in UpdateTask) (Task, error) {
	var out struct {
		Data Task `json:"data"`
	}
	err := c.do(ctx, http.MethodPut, taskPath(id), in, &out)
	return out.Data, err
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
