// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package cloudcontrol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-logr/logr"
	"github.com/gophercloud/gophercloud/v2"
)

// DefaultAPIVersion is the CloudControl API version the client speaks.
const DefaultAPIVersion = "2.4"

const userAgent = "formae-plugin-cloudcontrol"

// Client wraps a gophercloud ServiceClient for the CloudControl REST API.
// Requests are relative to the organization base URL
// {endpoint}/{orgId}/. A Client is immutable after NewClient returns.
type Client struct {
	service *gophercloud.ServiceClient
	auth    string
	orgID   string
}

// RequestOptions defines options for an API request
type RequestOptions struct {
	Method string
	Path   string      // relative to the organization base, e.g. "network/vlan"
	Query  interface{} // struct with `q` tags, see gophercloud.BuildQueryString
	Body   interface{}
}

// Response represents an API response
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{
			Code:       ErrorCodeMalformedResponse,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			HTTPCode:   r.StatusCode,
			Underlying: err,
		}
	}
	return nil
}

// Config holds CloudControl connection settings.
type Config struct {
	// Endpoint is the versioned API root, e.g.
	// https://api-na.dimensiondata.com/caas/2.4/
	Endpoint string
	Username string
	Password string
	// OrgID is resolved from the account when empty.
	OrgID string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// EndpointForRegion returns the API root for a CloudControl region such as
// "na", "eu" or "au".
func EndpointForRegion(region string) string {
	return fmt.Sprintf("https://api-%s.dimensiondata.com/caas/%s/", region, DefaultAPIVersion)
}

// NewClient creates a CloudControl client. When cfg.OrgID is empty the
// organization is looked up with GET user/myUser.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	provider := &gophercloud.ProviderClient{}
	if cfg.HTTPClient != nil {
		provider.HTTPClient = *cfg.HTTPClient
	}
	provider.UserAgent.Prepend(userAgent)

	endpoint := gophercloud.NormalizeURL(cfg.Endpoint)
	c := &Client{
		service: &gophercloud.ServiceClient{
			ProviderClient: provider,
			Endpoint:       endpoint,
		},
		auth: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Username+":"+cfg.Password)),
	}

	orgID := cfg.OrgID
	if orgID == "" {
		var err error
		orgID, err = c.lookupOrganization(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve organization: %w", err)
		}
	}
	c.orgID = orgID
	c.service.ResourceBase = endpoint + orgID + "/"
	return c, nil
}

// OrgID returns the organization the client is bound to.
func (c *Client) OrgID() string {
	return c.orgID
}

// Do executes an API request against the organization base URL.
func (c *Client) Do(ctx context.Context, opts RequestOptions) (*Response, error) {
	url := c.service.ResourceBaseURL() + strings.TrimPrefix(opts.Path, "/")
	return c.do(ctx, opts, url)
}

func (c *Client) do(ctx context.Context, opts RequestOptions, url string) (*Response, error) {
	log := logr.FromContextOrDiscard(ctx)

	if opts.Query != nil {
		q, err := gophercloud.BuildQueryString(opts.Query)
		if err != nil {
			return nil, NewError(ErrorCodeInvalidInput, fmt.Sprintf("invalid query: %v", err), err)
		}
		url += q.String()
	}

	reqOpts := &gophercloud.RequestOpts{
		// gophercloud defaults POST to 201/202; CloudControl answers 200.
		OkCodes:          []int{http.StatusOK},
		KeepResponseBody: true,
		MoreHeaders: map[string]string{
			"Authorization": c.auth,
			"Accept":        "application/json",
		},
	}
	if opts.Body != nil {
		reqOpts.JSONBody = opts.Body
	}

	log.V(1).Info("cloudcontrol request", "method", opts.Method, "url", url)
	resp, err := c.service.Request(ctx, opts.Method, url, reqOpts)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(ErrorCodeUnknown, fmt.Sprintf("failed to read response: %v", err), err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

type myUser struct {
	UserName     string `json:"userName"`
	Organization struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"organization"`
}

func (c *Client) lookupOrganization(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, RequestOptions{Method: http.MethodGet}, c.service.Endpoint+"user/myUser")
	if err != nil {
		return "", err
	}
	var user myUser
	if err := resp.Decode(&user); err != nil {
		return "", err
	}
	if user.Organization.ID == "" {
		return "", NewError(ErrorCodeMalformedResponse, "user/myUser returned no organization id", nil)
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("resolved organization", "user", user.UserName, "orgId", user.Organization.ID)
	return user.Organization.ID, nil
}

// classifyError converts gophercloud errors to transport errors
func classifyError(err error) error {
	var unexpected gophercloud.ErrUnexpectedResponseCode
	if errors.As(err, &unexpected) {
		return newHTTPError(unexpected.Actual, unexpected.Body, err)
	}
	var unexpectedPtr *gophercloud.ErrUnexpectedResponseCode
	if errors.As(err, &unexpectedPtr) {
		return newHTTPError(unexpectedPtr.Actual, unexpectedPtr.Body, err)
	}

	return &Error{
		Code:       ErrorCodeUnknown,
		Message:    err.Error(),
		Underlying: err,
	}
}
