package service

import (
	"context"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
)

const kindEndpoints = "endpoints"

// EndpointResolver memoizes service URL discovery. Lookups for the same
// (service, schema version, account) reach the discovery service at most
// once per TTL window across all processes sharing the store.
type EndpointResolver struct {
	disc      Discoverer
	store     CredentialStore
	opts      options
	endpoints *memoizer[*domain.EndpointSet]
}

// NewEndpointResolver creates an EndpointResolver.
func NewEndpointResolver(disc Discoverer, store CredentialStore, locker Locker, opts ...Option) (*EndpointResolver, error) {
	if disc == nil || store == nil || locker == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("discoverer, store and locker are required")
	}

	r := &EndpointResolver{
		disc:  disc,
		store: store,
		opts:  buildOptions(opts),
	}
	r.endpoints = &memoizer[*domain.EndpointSet]{
		kind:   kindEndpoints,
		store:  store,
		locker: locker,
		opts:   &r.opts,
	}
	return r, nil
}

// Resolve returns the candidate URLs for req.
func (r *EndpointResolver) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.EndpointSet, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := domain.ResolveKey(req)
	set, source, err := r.endpoints.get(ctx, memoCall[*domain.EndpointSet]{
		key:      key,
		lockName: domain.LockName(domain.OpResolve, key),
		usable: func(s *domain.EndpointSet) bool {
			return s != nil && len(s.URLs) > 0
		},
		fetch: func(ctx context.Context) (*domain.EndpointSet, time.Duration, error) {
			return r.fetch(ctx, req)
		},
	})
	if err != nil {
		r.opts.metrics.RecordResolve(domain.KindOf(err).String())
		return nil, err
	}
	r.opts.metrics.RecordResolve(source)

	r.opts.logger.WithContext(ctx).Debug("endpoints resolved",
		"service", req.Service,
		"schema_version", req.SchemaVersion,
		"account_id", req.AccountID,
		"count", len(set.URLs),
		"source", source,
	)
	return set, nil
}

func (r *EndpointResolver) fetch(ctx context.Context, req domain.ResolveRequest) (*domain.EndpointSet, time.Duration, error) {
	set, err := r.disc.Resolve(ctx, req)
	if err != nil {
		r.opts.logger.WithContext(ctx).Warn("endpoint discovery failed",
			"service", req.Service,
			"account_id", req.AccountID,
			"error", err,
		)
		return nil, 0, err
	}
	if set == nil || len(set.URLs) == 0 {
		return nil, 0, domain.ErrRemoteResponseInvalid.WithDetailsf("no endpoints for service %q", req.Service)
	}

	// Cache under the requested identity even if the server echoes a
	// different spelling.
	out := &domain.EndpointSet{
		Service:       req.Service,
		SchemaVersion: req.SchemaVersion,
		AccountID:     req.AccountID,
		URLs:          append([]string(nil), set.URLs...),
	}
	return out, r.opts.resolverTTL, nil
}

// URL resolves req and returns one of its URLs, normalized to https unless
// req.Insecure is set.
func (r *EndpointResolver) URL(ctx context.Context, req domain.ResolveRequest) (string, error) {
	set, err := r.Resolve(ctx, req)
	if err != nil {
		return "", err
	}
	return set.Pick(r.opts.intn, req.Insecure)
}

// Invalidate drops the cached endpoints for req so the next Resolve asks
// the discovery service again.
func (r *EndpointResolver) Invalidate(ctx context.Context, req domain.ResolveRequest) error {
	return r.store.Delete(ctx, domain.ResolveKey(req))
}
