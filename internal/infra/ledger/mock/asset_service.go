// Package mock provides a testify mock of domain.AssetService.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/learnreward/rewardplane/internal/domain"
)

// AssetService is a mock type for the domain.AssetService interface.
type AssetService struct {
	mock.Mock
}

var _ domain.AssetService = (*AssetService)(nil)

// NewAssetService creates a mock and registers its expectation check with t.
func NewAssetService(t interface {
	mock.TestingT
	Cleanup(func())
}) *AssetService {
	m := &AssetService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Mint provides a mock function.
func (m *AssetService) Mint(ctx context.Context, asset, to string, amount uint64, proof domain.AuthorityProof) error {
	ret := m.Called(ctx, asset, to, amount, proof)
	return ret.Error(0)
}

// Burn provides a mock function.
func (m *AssetService) Burn(ctx context.Context, asset, from string, amount uint64, proof domain.AuthorityProof) error {
	ret := m.Called(ctx, asset, from, amount, proof)
	return ret.Error(0)
}

// Transfer provides a mock function.
func (m *AssetService) Transfer(ctx context.Context, asset, from, to string, amount uint64, proof domain.AuthorityProof) error {
	ret := m.Called(ctx, asset, from, to, amount, proof)
	return ret.Error(0)
}

// BalanceOf provides a mock function.
func (m *AssetService) BalanceOf(ctx context.Context, asset, account string) (uint64, error) {
	ret := m.Called(ctx, asset, account)
	var bal uint64
	if fn, ok := ret.Get(0).(func(context.Context, string, string) uint64); ok {
		bal = fn(ctx, asset, account)
	} else {
		bal = ret.Get(0).(uint64)
	}
	return bal, ret.Error(1)
}
