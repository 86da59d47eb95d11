// Package memory is an in-memory AccountProvider for tests and
// examples. It is not meant for production use.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/idforge/idforge"
)

// Provider implements idforge.AccountProvider over process memory.
// Identifier matching is case-insensitive. Safe for concurrent use.
type Provider struct {
	mu          sync.RWMutex
	accounts    map[string]*idforge.Account
	byIdent     map[string]string
	enrollments map[string]*idforge.MFAEnrollment
	backupCodes map[string][]backupCode
}

type backupCode struct {
	hash [32]byte
	used bool
}

// NewProvider returns an empty provider.
func NewProvider() *Provider {
	return &Provider{
		accounts:    make(map[string]*idforge.Account),
		byIdent:     make(map[string]string),
		enrollments: make(map[string]*idforge.MFAEnrollment),
		backupCodes: make(map[string][]backupCode),
	}
}

// AddAccount registers an account. The identifier must be unique.
func (p *Provider) AddAccount(account idforge.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := account
	p.accounts[account.AccountID] = &stored
	p.byIdent[strings.ToLower(account.Identifier)] = account.AccountID
}

// SetStatus changes an account's lifecycle status.
func (p *Provider) SetStatus(accountID string, status idforge.AccountStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if account, ok := p.accounts[accountID]; ok {
		account.Status = status
	}
}

func (p *Provider) GetAccountByIdentifier(_ context.Context, identifier string) (*idforge.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	accountID, ok := p.byIdent[strings.ToLower(identifier)]
	if !ok {
		return nil, idforge.ErrAccountNotFound
	}
	return cloneAccount(p.accounts[accountID]), nil
}

func (p *Provider) GetAccountByID(_ context.Context, accountID string) (*idforge.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	account, ok := p.accounts[accountID]
	if !ok {
		return nil, idforge.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

func (p *Provider) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[accountID]
	if !ok {
		return idforge.ErrAccountNotFound
	}
	account.PasswordHash = newHash
	return nil
}

func (p *Provider) GetMFAEnrollment(_ context.Context, accountID string) (*idforge.MFAEnrollment, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	enrollment, ok := p.enrollments[accountID]
	if !ok {
		return nil, nil
	}
	out := *enrollment
	out.Secret = append([]byte(nil), enrollment.Secret...)
	return &out, nil
}

func (p *Provider) SaveMFAEnrollment(_ context.Context, accountID string, enrollment *idforge.MFAEnrollment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := *enrollment
	stored.Secret = append([]byte(nil), enrollment.Secret...)
	p.enrollments[accountID] = &stored
	return nil
}

func (p *Provider) EnableMFAEnrollment(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	enrollment, ok := p.enrollments[accountID]
	if !ok {
		return idforge.ErrAccountNotFound
	}
	enrollment.Enabled = true
	enrollment.Verified = true
	return nil
}

func (p *Provider) DisableMFAEnrollment(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.enrollments, accountID)
	return nil
}

func (p *Provider) UpdateTOTPLastUsedCounter(_ context.Context, accountID string, counter int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	enrollment, ok := p.enrollments[accountID]
	if !ok {
		return idforge.ErrAccountNotFound
	}
	enrollment.LastUsedCounter = counter
	return nil
}

func (p *Provider) ReplaceBackupCodes(_ context.Context, accountID string, codes []idforge.BackupCodeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := make([]backupCode, 0, len(codes))
	for _, record := range codes {
		stored = append(stored, backupCode{hash: record.Hash})
	}
	p.backupCodes[accountID] = stored
	return nil
}

func (p *Provider) ConsumeBackupCode(_ context.Context, accountID string, hash [32]byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	codes := p.backupCodes[accountID]
	for i := range codes {
		if !codes[i].used && codes[i].hash == hash {
			codes[i].used = true
			return true, nil
		}
	}
	return false, nil
}

// UnusedBackupCodes reports how many backup codes remain consumable.
func (p *Provider) UnusedBackupCodes(accountID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var n int
	for _, code := range p.backupCodes[accountID] {
		if !code.used {
			n++
		}
	}
	return n
}

func cloneAccount(account *idforge.Account) *idforge.Account {
	out := *account
	out.Roles = append([]string(nil), account.Roles...)
	return &out
}
