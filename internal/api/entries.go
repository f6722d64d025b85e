package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Entry is a journal entry as the remote service stores it. The client
// only moves entries around; all interpretation of the markdown body
// happens locally.
type Entry struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	UpdatedAt int64    `json:"updatedAt,omitempty"`
}

func (c *Client) GetEntry(ctx context.Context, id string) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/entries/"+url.PathEscape(id), nil)
	if err != nil {
		return Entry{}, err
	}
	resp, err := c.doRequest(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Entry{}, responseError("get entry", resp)
	}
	var entry Entry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return entry, nil
}

// SaveEntry creates the entry when it has no ID and updates it
// otherwise.
func (c *Client) SaveEntry(ctx context.Context, entry Entry) (Entry, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, err
	}
	method := http.MethodPost
	target := c.baseURL + "/api/entries"
	if entry.ID != "" {
		method = http.MethodPut
		target += "/" + url.PathEscape(entry.ID)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return Entry{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.doRequest(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Entry{}, responseError("save entry", resp)
	}
	var saved Entry
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return Entry{}, fmt.Errorf("decode saved entry: %w", err)
	}
	return saved, nil
}

func (c *Client) ListEntries(ctx context.Context, limit int) ([]Entry, error) {
	target := c.baseURL + "/api/entries"
	if limit > 0 {
		target += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError("list entries", resp)
	}
	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}
