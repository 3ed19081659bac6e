package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/roach88/soqlkit/internal/ir"
)

// DefaultAPIVersion is used when no API version is configured.
const DefaultAPIVersion = "58.0"

// Credentials are the inputs of the OAuth2 username-password flow.
type Credentials struct {
	LoginURL      string
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	SecurityToken string
	APIVersion    string
}

// RESTClient implements Client over the REST API.
type RESTClient struct {
	http        *http.Client
	instanceURL string
	apiVersion  string
}

// NewRESTClient creates a client for an already authenticated HTTP client.
// The HTTP client must add authorization to every request.
func NewRESTClient(httpClient *http.Client, instanceURL, apiVersion string) *RESTClient {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &RESTClient{
		http:        httpClient,
		instanceURL: strings.TrimSuffix(instanceURL, "/"),
		apiVersion:  apiVersion,
	}
}

// Login authenticates with the username-password grant and returns a client
// bound to the instance URL the token response names.
//
// The security token is appended to the password, as the remote system
// expects for logins from untrusted networks.
func Login(ctx context.Context, creds Credentials) (*RESTClient, error) {
	if creds.LoginURL == "" {
		return nil, errors.New("login: login URL is required")
	}
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimSuffix(creds.LoginURL, "/") + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	slog.Debug("requesting access token", "login_url", creds.LoginURL, "username", creds.Username)
	tok, err := conf.PasswordCredentialsToken(ctx, creds.Username, creds.Password+creds.SecurityToken)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	instanceURL, _ := tok.Extra("instance_url").(string)
	if instanceURL == "" {
		return nil, errors.New("login: token response has no instance_url")
	}
	slog.Info("authenticated", "instance_url", instanceURL)

	// The token source outlives the login request.
	httpClient := conf.Client(context.WithoutCancel(ctx), tok)
	return NewRESTClient(httpClient, instanceURL, creds.APIVersion), nil
}

// queryResponse is one page of a query result.
type queryResponse struct {
	TotalSize      int         `json:"totalSize"`
	Done           bool        `json:"done"`
	NextRecordsURL string      `json:"nextRecordsUrl"`
	Records        []ir.Record `json:"records"`
}

// Query implements Querier. Result pages are followed until done.
func (c *RESTClient) Query(ctx context.Context, soql string) ([]ir.Record, error) {
	path := c.dataPath("query") + "?q=" + url.QueryEscape(soql)
	slog.Debug("remote query", "soql", soql)

	var records []ir.Record
	for path != "" {
		var page queryResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Done {
			break
		}
		path = page.NextRecordsURL
	}
	return records, nil
}

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// Create implements Writer.
func (c *RESTClient) Create(ctx context.Context, sobject string, fields ir.IRObject) (string, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, c.dataPath("sobjects", sobject)+"/", fields, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.ID == "" {
		return "", fmt.Errorf("create %s: remote reported no id", sobject)
	}
	return resp.ID, nil
}

// Update implements Writer. The identity is moved from the payload into the
// request path.
func (c *RESTClient) Update(ctx context.Context, sobject string, fields ir.IRObject) error {
	id, ok := fields[ir.IdentityField].(ir.IRString)
	if !ok || id == "" {
		return fmt.Errorf("update %s: fields carry no %s", sobject, ir.IdentityField)
	}
	body := make(ir.IRObject, len(fields)-1)
	for k, v := range fields {
		if k != ir.IdentityField {
			body[k] = v
		}
	}
	return c.do(ctx, http.MethodPatch, c.dataPath("sobjects", sobject, string(id)), body, nil)
}

func (c *RESTClient) dataPath(elems ...string) string {
	escaped := make([]string, len(elems))
	for i, e := range elems {
		escaped[i] = url.PathEscape(e)
	}
	return "/services/data/v" + c.apiVersion + "/" + strings.Join(escaped, "/")
}

// do sends one request. path is relative to the instance URL.
func (c *RESTClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.instanceURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeAPIError reads the remote error list, which is a JSON array of
// {message, errorCode} objects.
func decodeAPIError(method, path string, status int, data []byte) error {
	apiErr := &APIError{StatusCode: status, Method: method, Path: path}

	var list []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		apiErr.Code = list[0].ErrorCode
		apiErr.Message = list[0].Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
