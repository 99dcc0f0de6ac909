// Package loki pushes auth telemetry events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"memodams/backend/internal/telemetry/domain"
)

const defaultJob = "memodams"

var ErrNoBaseURL = errors.New("loki: base URL is empty")

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Labels map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Entry is one log line and the stream labels it belongs to.
type Entry struct {
	Time   time.Time
	Line   string
	Labels map[string]string
}

// EntryFromEvent turns a Kafka message value into an entry labelled by event type and
// source. Account and device ids stay in the line; as labels they would explode stream
// cardinality. Undecodable values are kept verbatim and stamped with the current time.
func EntryFromEvent(raw []byte) Entry {
	e := Entry{Time: time.Now().UTC(), Line: string(raw), Labels: map[string]string{}}
	var ev domain.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return e
	}
	if ev.EventType != "" {
		e.Labels["event_type"] = ev.EventType
	}
	if ev.Source != "" {
		e.Labels["source"] = ev.Source
	}
	if !ev.CreatedAt.IsZero() {
		e.Time = ev.CreatedAt
	}
	return e
}

// Client pushes to a single Loki instance.
type Client struct {
	BaseURL string
	Job     string
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, Job: defaultJob, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Push sends entries in one request, one stream per distinct label set.
func (c *Client) Push(ctx context.Context, entries ...Entry) error {
	if c == nil || c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if len(entries) == 0 {
		return nil
	}
	payload, err := json.Marshal(c.streams(entries))
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(c.BaseURL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

func (c *Client) streams(entries []Entry) pushRequest {
	job := c.Job
	if job == "" {
		job = defaultJob
	}
	byKey := map[string]int{}
	var req pushRequest
	for _, e := range entries {
		labels := map[string]string{"job": job}
		for k, v := range e.Labels {
			if v = sanitize(v); v != "" {
				labels[k] = v
			}
		}
		key := labelKey(labels)
		i, ok := byKey[key]
		if !ok {
			i = len(req.Streams)
			byKey[key] = i
			req.Streams = append(req.Streams, stream{Labels: labels})
		}
		req.Streams[i].Values = append(req.Streams[i].Values, [2]string{strconv.FormatInt(e.Time.UnixNano(), 10), e.Line})
	}
	return req
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

func sanitize(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == ':':
			return r
		}
		return '_'
	}, strings.TrimSpace(v))
}
