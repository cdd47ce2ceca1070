// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package api is the typed CloudControl resource adapter. List calls are
// paginated lazily, mutating calls run under the retry policy, and the
// Wait helpers turn the vendor's asynchronous operations into synchronous
// ones.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/paging"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/retry"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/transport/cloudcontrol"
	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/waiter"
)

// Transport executes a single CloudControl request.
type Transport interface {
	Do(ctx context.Context, opts cloudcontrol.RequestOptions) (*cloudcontrol.Response, error)
}

// DefaultRetryableCodes are the vendor codes resubmitted by default.
var DefaultRetryableCodes = []string{
	cloudcontrol.VendorCodeRetryableSystemError,
	cloudcontrol.VendorCodeResourceBusy,
	cloudcontrol.VendorCodeResourceLocked,
}

const (
	DefaultPollInterval        = 5 * time.Second
	DefaultProvisioningTimeout = 30 * time.Minute
)

// Options tunes retries and polling.
type Options struct {
	Retry retry.Policy
	// RetryableCodes builds Retry.Retryable when it is nil.
	RetryableCodes      []string
	PollInterval        time.Duration
	ProvisioningTimeout time.Duration
}

// DefaultOptions returns the default retry and polling settings.
func DefaultOptions() Options {
	return Options{
		Retry:               retry.DefaultPolicy(),
		RetryableCodes:      DefaultRetryableCodes,
		PollInterval:        DefaultPollInterval,
		ProvisioningTimeout: DefaultProvisioningTimeout,
	}
}

// API groups the CloudControl feature APIs over one transport.
type API struct {
	Network        *NetworkAPI
	Server         *ServerAPI
	Image          *ImageAPI
	Infrastructure *InfrastructureAPI

	base *base
}

// New returns an API over t. Zero fields in opts take their defaults.
func New(t Transport, opts Options) *API {
	def := DefaultOptions()
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if opts.Retry.InitialInterval <= 0 {
		opts.Retry.InitialInterval = def.Retry.InitialInterval
	}
	if opts.Retry.MaxInterval <= 0 {
		opts.Retry.MaxInterval = def.Retry.MaxInterval
	}
	if opts.RetryableCodes == nil {
		opts.RetryableCodes = def.RetryableCodes
	}
	if opts.Retry.Retryable == nil {
		codes := opts.RetryableCodes
		opts.Retry.Retryable = func(err error) bool {
			return cloudcontrol.HasVendorCode(err, codes...)
		}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.ProvisioningTimeout <= 0 {
		opts.ProvisioningTimeout = def.ProvisioningTimeout
	}

	b := &base{transport: t, opts: opts}
	return &API{
		Network:        &NetworkAPI{b},
		Server:         &ServerAPI{b},
		Image:          &ImageAPI{b},
		Infrastructure: &InfrastructureAPI{b},
		base:           b,
	}
}

// Options returns the effective options.
func (a *API) Options() Options {
	return a.base.opts
}

// ListOptions filters list calls. Zero fields are not sent.
type ListOptions struct {
	DatacenterID    string `q:"datacenterId"`
	NetworkDomainID string `q:"networkDomainId"`
	VlanID          string `q:"vlanId"`
	Name            string `q:"name"`
	State           string `q:"state"`
	PageSize        int    `q:"pageSize"`
	PageNumber      int    `q:"pageNumber"`
}

type base struct {
	transport Transport
	opts      Options
}

func (b *base) get(ctx context.Context, path string, out interface{}) error {
	resp, err := b.transport.Do(ctx, cloudcontrol.RequestOptions{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// post submits a mutating call under the retry policy and returns the
// accepted operation.
func (b *base) post(ctx context.Context, path string, body interface{}) (*domain.Operation, error) {
	return retry.Do(ctx, b.opts.Retry, path, func(ctx context.Context) (*domain.Operation, error) {
		resp, err := b.transport.Do(ctx, cloudcontrol.RequestOptions{Method: http.MethodPost, Path: path, Body: body})
		if err != nil {
			return nil, err
		}
		var op domain.Operation
		if err := resp.Decode(&op); err != nil {
			return nil, err
		}
		if !op.Accepted() {
			return nil, operationError(&op, resp.StatusCode)
		}
		return &op, nil
	})
}

// remove posts {"id": id} to path. A resource that is already gone is not
// an error; the returned operation is nil in that case.
func (b *base) remove(ctx context.Context, path, id string) (*domain.Operation, error) {
	op, err := b.post(ctx, path, idRequest{ID: id})
	if cloudcontrol.IsNotFound(err) {
		return nil, nil
	}
	return op, err
}

type idRequest struct {
	ID string `json:"id"`
}

func operationError(op *domain.Operation, status int) error {
	code, ok := cloudcontrol.ClassifyVendorCode(op.ResponseCode)
	if !ok {
		code = cloudcontrol.ErrorCodeUnknown
	}
	return &cloudcontrol.Error{
		Code:       code,
		VendorCode: op.ResponseCode,
		Message:    op.Message,
		Operation:  op.Operation,
		RequestID:  op.RequestID,
		HTTPCode:   status,
	}
}

type pageEnvelope struct {
	PageNumber int `json:"pageNumber"`
	PageCount  int `json:"pageCount"`
	TotalCount int `json:"totalCount"`
	PageSize   int `json:"pageSize"`
}

// newPager lists path, reading the items from the key array of each page.
func newPager[T any](b *base, path, key string, opts ListOptions) *paging.Pager[T] {
	return paging.NewPager(func(ctx context.Context, pageNumber int) (paging.Collection[T], error) {
		q := opts
		q.PageNumber = pageNumber
		resp, err := b.transport.Do(ctx, cloudcontrol.RequestOptions{Method: http.MethodGet, Path: path, Query: q})
		if err != nil {
			return paging.Collection[T]{}, err
		}
		return decodePage[T](resp, key)
	})
}

func decodePage[T any](resp *cloudcontrol.Response, key string) (paging.Collection[T], error) {
	var env pageEnvelope
	if err := resp.Decode(&env); err != nil {
		return paging.Collection[T]{}, err
	}
	var raw map[string]json.RawMessage
	if err := resp.Decode(&raw); err != nil {
		return paging.Collection[T]{}, err
	}

	var items []T
	if data, ok := raw[key]; ok {
		if err := json.Unmarshal(data, &items); err != nil {
			return paging.Collection[T]{}, &cloudcontrol.Error{
				Code:       cloudcontrol.ErrorCodeMalformedResponse,
				Message:    fmt.Sprintf("failed to decode %s list: %v", key, err),
				HTTPCode:   resp.StatusCode,
				Underlying: err,
			}
		}
	}
	return paging.Collection[T]{
		Items:      items,
		PageNumber: env.PageNumber,
		PageCount:  env.PageCount,
		TotalCount: env.TotalCount,
		PageSize:   env.PageSize,
	}, nil
}

// Kind identifies a CloudControl resource type for state polling.
type Kind string

const (
	KindNetworkDomain Kind = "networkDomain"
	KindVlan          Kind = "vlan"
	KindPublicIPBlock Kind = "publicIpBlock"
	KindFirewallRule  Kind = "firewallRule"
	KindNatRule       Kind = "natRule"
	KindServer        Kind = "server"
)

// Path returns the resource collection path.
func (k Kind) Path() string {
	if k == KindServer {
		return "server/server"
	}
	return "network/" + string(k)
}

// InfoKey returns the info entry that carries the id of a new resource.
func (k Kind) InfoKey() string {
	switch k {
	case KindNetworkDomain:
		return "networkDomainId"
	case KindVlan:
		return "vlanId"
	case KindPublicIPBlock:
		return "ipBlockId"
	case KindFirewallRule:
		return "firewallRuleId"
	case KindNatRule:
		return "natRuleId"
	case KindServer:
		return "serverId"
	default:
		return ""
	}
}

// StateOf returns the current state of a resource.
func (a *API) StateOf(ctx context.Context, kind Kind, id string) (domain.State, error) {
	var r struct {
		State domain.State `json:"state"`
	}
	if err := a.base.get(ctx, kind.Path()+"/"+id, &r); err != nil {
		return "", err
	}
	return r.State, nil
}

// WaitForState polls until the resource reaches want. A failed state stops
// polling with a *waiter.StateError.
func (a *API) WaitForState(ctx context.Context, kind Kind, id string, want domain.State) error {
	what := fmt.Sprintf("%s %s to be %s", kind, id, want)
	return waiter.Wait(ctx, what, a.base.opts.PollInterval, a.base.opts.ProvisioningTimeout,
		waiter.ForState(what, want, func(ctx context.Context) (domain.State, error) {
			return a.StateOf(ctx, kind, id)
		}))
}

// WaitForDeleted polls until the resource is gone.
func (a *API) WaitForDeleted(ctx context.Context, kind Kind, id string) error {
	what := fmt.Sprintf("%s %s to be deleted", kind, id)
	return waiter.Wait(ctx, what, a.base.opts.PollInterval, a.base.opts.ProvisioningTimeout,
		func(ctx context.Context) (bool, error) {
			state, err := a.StateOf(ctx, kind, id)
			if cloudcontrol.IsNotFound(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			if state.IsFailed() {
				return false, &waiter.StateError{What: what, State: state}
			}
			return false, nil
		})
}

// Await extracts the new resource id from op and waits until the resource
// is NORMAL.
func (a *API) Await(ctx context.Context, kind Kind, op *domain.Operation) (string, error) {
	id := op.InfoValue(kind.InfoKey())
	if id == "" {
		return "", cloudcontrol.NewError(cloudcontrol.ErrorCodeMalformedResponse,
			fmt.Sprintf("%s response carries no %s", op.Operation, kind.InfoKey()), nil)
	}
	if err := a.WaitForState(ctx, kind, id, domain.StateNormal); err != nil {
		return id, err
	}
	return id, nil
}
