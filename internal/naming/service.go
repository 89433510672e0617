// Copyright 2025 Blockscout

package naming

import (
	"context"
	"fmt"
	"time"

	"github.com/blockscout/indexing-core/internal/apiserver"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/errorkind"
)

// Service serves the resolver's read operations over the domains
// tables, implementing apiserver.NamingResolver. Lookup page tokens
// are the last returned name; event page tokens are RFC 3339
// timestamps.
type Service struct {
	repo *database.NamingRepository
}

var _ apiserver.NamingResolver = (*Service)(nil)

func New(client *database.Client) *Service {
	return &Service{repo: database.NewNamingRepository(client)}
}

// BatchResolveAddressNames implements apiserver.NamingResolver.
func (s *Service) BatchResolveAddressNames(ctx context.Context, addresses []string) (map[string]string, error) {
	return s.repo.ResolveAddresses(ctx, addresses)
}

// GetDomain implements apiserver.NamingResolver.
func (s *Service) GetDomain(ctx context.Context, name string) (apiserver.Domain, bool, error) {
	dn, err := NewDomainName(name)
	if err != nil {
		return apiserver.Domain{}, false, errorkind.Wrap(errorkind.InvalidArgument, "parse domain name", err)
	}
	row, found, err := s.repo.GetByID(ctx, dn.ID)
	if err != nil || !found {
		return apiserver.Domain{}, false, err
	}
	return toAPIDomain(row), true, nil
}

// LookupDomain implements apiserver.NamingResolver.
func (s *Service) LookupDomain(ctx context.Context, query string, page apiserver.Page) ([]apiserver.Domain, apiserver.PageResult, error) {
	limit := page.Clamp()
	rows, err := s.repo.Lookup(ctx, query, page.PageToken, limit)
	if err != nil {
		return nil, apiserver.PageResult{}, err
	}

	out := make([]apiserver.Domain, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAPIDomain(row))
	}

	var result apiserver.PageResult
	if len(rows) == limit {
		result.NextPageToken = rows[len(rows)-1].Name
	}
	return out, result, nil
}

// ListDomainEvents implements apiserver.NamingResolver.
func (s *Service) ListDomainEvents(ctx context.Context, name string, page apiserver.Page) ([]apiserver.DomainEvent, apiserver.PageResult, error) {
	dn, err := NewDomainName(name)
	if err != nil {
		return nil, apiserver.PageResult{}, errorkind.Wrap(errorkind.InvalidArgument, "parse domain name", err)
	}

	before := time.Time{}
	if page.PageToken != "" {
		parsed, err := time.Parse(time.RFC3339, page.PageToken)
		if err != nil {
			return nil, apiserver.PageResult{}, fmt.Errorf("invalid page token %q: %w", page.PageToken, err)
		}
		before = parsed
	}

	limit := page.Clamp()
	rows, err := s.repo.ListEvents(ctx, dn.ID, before, limit)
	if err != nil {
		return nil, apiserver.PageResult{}, err
	}

	out := make([]apiserver.DomainEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, apiserver.DomainEvent{
			Domain:    dn.Name,
			Kind:      row.Kind,
			TxHash:    row.TxHash,
			Timestamp: row.Timestamp.Unix(),
		})
	}

	var result apiserver.PageResult
	if len(rows) == limit {
		result.NextPageToken = rows[len(rows)-1].Timestamp.Format(time.RFC3339)
	}
	return out, result, nil
}

// GetAddress implements apiserver.NamingResolver: forward resolution
// of a name to the address it points at.
func (s *Service) GetAddress(ctx context.Context, name string) (string, bool, error) {
	domain, found, err := s.GetDomain(ctx, name)
	if err != nil || !found {
		return "", false, err
	}
	if domain.ResolvedTo == "" {
		return "", false, nil
	}
	return domain.ResolvedTo, true, nil
}

// GetProtocols implements apiserver.NamingResolver.
func (s *Service) GetProtocols(ctx context.Context) ([]string, error) {
	return s.repo.ListProtocols(ctx)
}

func toAPIDomain(row database.DomainRow) apiserver.Domain {
	d := apiserver.Domain{
		Name:       row.Name,
		Owner:      row.Owner,
		ResolvedTo: row.ResolvedTo,
		Protocol:   row.Protocol,
	}
	if !row.ExpiresAt.IsZero() {
		d.ExpiresAt = row.ExpiresAt.Unix()
	}
	return d
}
