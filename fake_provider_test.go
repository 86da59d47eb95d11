package idforge

import (
	"context"
	"strings"
	"sync"
)

// fakeProvider implements AccountProvider over process memory for the
// in-package suite. It mirrors store/memory, which cannot be imported
// here without a cycle.
type fakeProvider struct {
	mu          sync.RWMutex
	accounts    map[string]*Account
	byIdent     map[string]string
	enrollments map[string]*MFAEnrollment
	backupCodes map[string][]fakeBackupCode
}

type fakeBackupCode struct {
	hash [32]byte
	used bool
}

var _ AccountProvider = (*fakeProvider)(nil)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:    make(map[string]*Account),
		byIdent:     make(map[string]string),
		enrollments: make(map[string]*MFAEnrollment),
		backupCodes: make(map[string][]fakeBackupCode),
	}
}

func (p *fakeProvider) AddAccount(account Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := account
	p.accounts[account.AccountID] = &stored
	p.byIdent[strings.ToLower(account.Identifier)] = account.AccountID
}

func (p *fakeProvider) SetStatus(accountID string, status AccountStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if account, ok := p.accounts[accountID]; ok {
		account.Status = status
	}
}

func (p *fakeProvider) GetAccountByIdentifier(_ context.Context, identifier string) (*Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	accountID, ok := p.byIdent[strings.ToLower(identifier)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneFakeAccount(p.accounts[accountID]), nil
}

func (p *fakeProvider) GetAccountByID(_ context.Context, accountID string) (*Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	account, ok := p.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneFakeAccount(account), nil
}

func (p *fakeProvider) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = newHash
	return nil
}

func (p *fakeProvider) GetMFAEnrollment(_ context.Context, accountID string) (*MFAEnrollment, error) {
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

func (p *fakeProvider) SaveMFAEnrollment(_ context.Context, accountID string, enrollment *MFAEnrollment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := *enrollment
	stored.Secret = append([]byte(nil), enrollment.Secret...)
	p.enrollments[accountID] = &stored
	return nil
}

func (p *fakeProvider) EnableMFAEnrollment(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	enrollment, ok := p.enrollments[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	enrollment.Enabled = true
	enrollment.Verified = true
	return nil
}

func (p *fakeProvider) DisableMFAEnrollment(_ context.Context, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.enrollments, accountID)
	return nil
}

func (p *fakeProvider) UpdateTOTPLastUsedCounter(_ context.Context, accountID string, counter int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	enrollment, ok := p.enrollments[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	enrollment.LastUsedCounter = counter
	return nil
}

func (p *fakeProvider) ReplaceBackupCodes(_ context.Context, accountID string, codes []BackupCodeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := make([]fakeBackupCode, 0, len(codes))
	for _, record := range codes {
		stored = append(stored, fakeBackupCode{hash: record.Hash})
	}
	p.backupCodes[accountID] = stored
	return nil
}

func (p *fakeProvider) ConsumeBackupCode(_ context.Context, accountID string, hash [32]byte) (bool, error) {
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
func (p *fakeProvider) UnusedBackupCodes(accountID string) int {
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

func cloneFakeAccount(account *Account) *Account {
	out := *account
	out.Roles = append([]string(nil), account.Roles...)
	return &out
}
