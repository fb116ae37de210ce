package accounts

import (
	"context"
	"fmt"
	"strings"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service maintains the chart of accounts.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Tree returns the tenant's chart indexed as a tree.
func (s *Service) Tree(ctx context.Context, tenantID int64) (*Tree, error) {
	list, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return NewTree(list), nil
}

// Create adds an account, optionally under a parent of the same tenant.
func (s *Service) Create(ctx context.Context, tenantID int64, in CreateInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" {
		return Account{}, shared.Errorf(shared.ErrValidation, "accounting: account code and name required")
	}
	if !in.Type.Valid() {
		return Account{}, shared.Errorf(shared.ErrValidation, "accounting: unknown account type %q", in.Type)
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := tx.LockChart(ctx, tenantID)
		if err != nil {
			return err
		}
		if in.ParentID != nil {
			if _, ok := NewTree(chart).Get(*in.ParentID); !ok {
				return fmt.Errorf("parent %d: %w", *in.ParentID, accshared.ErrAccountNotFound)
			}
		}
		created, err = tx.Insert(ctx, tenantID, in)
		return err
	})
	return created, err
}

// Move re-parents an account. A nil parent makes it a root.
func (s *Service) Move(ctx context.Context, tenantID, id int64, parentID *int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := tx.LockChart(ctx, tenantID)
		if err != nil {
			return err
		}
		tree := NewTree(chart)
		if _, ok := tree.Get(id); !ok {
			return accshared.ErrAccountNotFound
		}
		if parentID != nil {
			if _, ok := tree.Get(*parentID); !ok {
				return fmt.Errorf("parent %d: %w", *parentID, accshared.ErrAccountNotFound)
			}
			if tree.WouldCycle(id, *parentID) {
				return shared.Errorf(shared.ErrValidation, "accounting: account %d cannot be its own ancestor", id)
			}
		}
		return tx.UpdateParent(ctx, tenantID, id, parentID)
	})
}

// SetActive toggles whether new postings may use the account.
func (s *Service) SetActive(ctx context.Context, tenantID, id int64, active bool) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetActive(ctx, tenantID, id, active)
	})
}

// Delete removes an account that no journal line references and that has no children.
func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chart, err := tx.LockChart(ctx, tenantID)
		if err != nil {
			return err
		}
		tree := NewTree(chart)
		acct, ok := tree.Get(id)
		if !ok {
			return accshared.ErrAccountNotFound
		}
		if len(tree.Children(id)) > 0 {
			return shared.Errorf(shared.ErrInvalidState, "accounting: account %s has children", acct.Code)
		}
		used, err := tx.IsReferenced(ctx, tenantID, acct.Code)
		if err != nil {
			return err
		}
		if used {
			return shared.Errorf(shared.ErrInvalidState, "accounting: account %s is referenced by journal lines; deactivate it instead", acct.Code)
		}
		return tx.Delete(ctx, tenantID, id)
	})
}
