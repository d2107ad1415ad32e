// Package client is a typed client for the gateway's operation surface,
// used by the offline kiosk agent and its reconciler.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/profile"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Login obtains a bearer token and remembers it for later calls.
func (c *Client) Login(ctx context.Context, username, password, role string) error {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": password, "role": role}, &out)
	if err != nil {
		return err
	}
	c.token = out.AccessToken
	return nil
}

// Probe reports whether the gateway is reachable. Short timeout; a slow
// network counts as offline rather than blocking the student.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2500*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) Identify(ctx context.Context, in profile.IdentifyInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/identify", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Subjects(ctx context.Context) ([]catalog.Subject, error) {
	var out []catalog.Subject
	return out, c.do(ctx, http.MethodGet, "/quiz/subjects", nil, &out)
}

func (c *Client) Quizzes(ctx context.Context) ([]catalog.Quiz, error) {
	var out []catalog.Quiz
	return out, c.do(ctx, http.MethodGet, "/quizzes", nil, &out)
}

func (c *Client) Questions(ctx context.Context, quizID string) ([]catalog.Question, error) {
	var out []catalog.Question
	return out, c.do(ctx, http.MethodGet, "/quiz/"+url.PathEscape(quizID)+"/questions", nil, &out)
}

func (c *Client) Options(ctx context.Context, quizID, questionID string) ([]catalog.Option, error) {
	var out []catalog.Option
	path := "/quiz/questions/" + url.PathEscape(questionID) + "/options?quizId=" + url.QueryEscape(quizID)
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) StartAttempt(ctx context.Context, quizID, password string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"password": password}
	if err := c.do(ctx, http.MethodPost, "/quiz/"+url.PathEscape(quizID)+"/start", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) RecordAnswer(ctx context.Context, attemptID, questionID, selectedID string) error {
	body := map[string]string{"questionId": questionID, "selectedOptionId": selectedID}
	return c.do(ctx, http.MethodPost, "/quiz/attempts/"+url.PathEscape(attemptID)+"/answer", body, nil)
}

func (c *Client) CompleteAttempt(ctx context.Context, attemptID string) (attempt.Result, error) {
	var out attempt.Result
	err := c.do(ctx, http.MethodPost, "/quiz/attempts/"+url.PathEscape(attemptID)+"/complete", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
