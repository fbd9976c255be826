// Package catalog executes VQL through the Data Catalog "ask a question"
// execution endpoint.
package catalog

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"vqlbench/internal/table"
	"vqlbench/internal/util"
)

// DefaultURL is the execution endpoint of a local Data Catalog.
const DefaultURL = "http://localhost:9090/denodo-data-catalog/public/api/askaquestion/execute"

// DefaultLimit is the row cap the endpoint applies per query.
const DefaultLimit = 100

// Options configures a Client.
type Options struct {
	URL       string
	ServerID  int
	User      string
	Password  string
	VerifySSL bool
	Limit     int
	Timeout   time.Duration
}

// Client posts queries to the execution endpoint. It is safe for concurrent
// use.
type Client struct {
	endpoint string
	user     string
	password string
	limit    int
	http     *http.Client
}

// HTTPError is a non-2xx response from the endpoint.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("data catalog returned %d: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// New builds a client from options, filling defaults.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.ServerID <= 0 {
		opts.ServerID = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse data catalog url")
	}
	q := u.Query()
	q.Set("serverId", strconv.Itoa(opts.ServerID))
	u.RawQuery = q.Encode()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // matches verify_ssl=false
	}
	return &Client{
		endpoint: u.String(),
		user:     opts.User,
		password: opts.Password,
		limit:    opts.Limit,
		http:     &http.Client{Transport: transport, Timeout: opts.Timeout},
	}, nil
}

type executeRequest struct {
	VQL   string `json:"vql"`
	Limit int    `json:"limit"`
}

type executeResponse struct {
	Rows []struct {
		Values []struct {
			Column     string `json:"column"`
			ColumnName string `json:"columnName"`
			Value      any    `json:"value"`
		} `json:"values"`
	} `json:"rows"`
}

// Execute posts the query and converts the returned rows into a table. The
// duration covers the whole round trip.
func (c *Client) Execute(ctx context.Context, query string) (*table.Table, time.Duration, error) {
	start := time.Now()
	body, err := json.Marshal(executeRequest{VQL: query, Limit: c.limit})
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, time.Since(start), errors.Wrap(err, "data catalog request")
	}
	defer util.CloseWithErr(resp.Body, "data catalog response")
	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, errors.Wrap(err, "read data catalog response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, elapsed, &HTTPError{Status: resp.StatusCode, Body: snippet(data)}
	}
	tbl, err := parseResponse(data)
	if err != nil {
		return nil, elapsed, err
	}
	return tbl, elapsed, nil
}

// parseResponse keys cells by column name. Columns are ordered by first
// appearance; a row missing a column gets a null cell.
func parseResponse(data []byte) (*table.Table, error) {
	var resp executeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "decode data catalog response")
	}
	tbl := &table.Table{}
	colIndex := map[string]int{}
	records := make([]map[string]any, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		rec := make(map[string]any, len(row.Values))
		for _, v := range row.Values {
			name := v.Column
			if name == "" {
				name = v.ColumnName
			}
			if name == "" {
				name = "unknown_column"
			}
			if _, ok := colIndex[name]; !ok {
				colIndex[name] = len(tbl.Columns)
				tbl.Columns = append(tbl.Columns, name)
			}
			rec[name] = v.Value
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		row := make([]any, len(tbl.Columns))
		for name, v := range rec {
			row[colIndex[name]] = v
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}

func snippet(data []byte) string {
	const limit = 256
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
