package testing

import (
	"context"
	"sync"

	"github.com/desertthunder/stylx/internal/identity"
)

// FakeProvider is an in-memory [identity.Provider].
type FakeProvider struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount // by email
	current  *identity.Identity
	subs     map[int]chan *identity.Identity
	nextSub  int

	// Err* force the matching call to fail when set.
	CreateErr error
	SignInErr error
	UpdateErr error
	DeleteErr error

	Log *CallLog
}

type fakeAccount struct {
	identity identity.Identity
	password string
}

var _ identity.Provider = (*FakeProvider)(nil)

func NewFakeProvider(log *CallLog) *FakeProvider {
	return &FakeProvider{accounts: make(map[string]fakeAccount), subs: make(map[int]chan *identity.Identity), Log: log}
}

// AddAccount seeds an existing provider account.
func (f *FakeProvider) AddAccount(uid, email, password, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = fakeAccount{identity: identity.Identity{UID: uid, Email: email, DisplayName: name}, password: password}
}

// HasAccount reports whether an account exists for email.
func (f *FakeProvider) HasAccount(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[email]
	return ok
}

// AccountCount is the number of provider accounts.
func (f *FakeProvider) AccountCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.accounts)
}

func (f *FakeProvider) CreateAccount(_ context.Context, email, password string) (*identity.Identity, error) {
	f.Log.Add("provider.create")
	f.mu.Lock()
	if f.CreateErr != nil {
		f.mu.Unlock()
		return nil, f.CreateErr
	}
	if _, exists := f.accounts[email]; exists {
		f.mu.Unlock()
		return nil, &identity.Error{Code: identity.CodeEmailExists}
	}
	if len(password) < 6 {
		f.mu.Unlock()
		return nil, &identity.Error{Code: identity.CodeWeakPassword, Message: "Password should be at least 6 characters"}
	}
	id := identity.Identity{UID: "uid-" + email, Email: email}
	f.accounts[email] = fakeAccount{identity: id, password: password}
	f.current = &id
	f.mu.Unlock()

	f.Emit(&id)
	out := id
	return &out, nil
}

func (f *FakeProvider) SignIn(_ context.Context, email, password string) (*identity.Identity, error) {
	f.Log.Add("provider.signin")
	f.mu.Lock()
	if f.SignInErr != nil {
		f.mu.Unlock()
		return nil, f.SignInErr
	}
	acct, ok := f.accounts[email]
	if !ok {
		f.mu.Unlock()
		return nil, &identity.Error{Code: identity.CodeEmailNotFound}
	}
	if acct.password != password {
		f.mu.Unlock()
		return nil, &identity.Error{Code: identity.CodeInvalidPassword}
	}
	id := acct.identity
	f.current = &id
	f.mu.Unlock()

	f.Emit(&id)
	out := id
	return &out, nil
}

func (f *FakeProvider) UpdateProfile(_ context.Context, displayName string) error {
	f.Log.Add("provider.update")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	if f.current == nil {
		return &identity.Error{Code: identity.CodeNoCurrentUser}
	}
	f.current.DisplayName = displayName
	acct := f.accounts[f.current.Email]
	acct.identity.DisplayName = displayName
	f.accounts[f.current.Email] = acct
	return nil
}

func (f *FakeProvider) DeleteAccount(_ context.Context) error {
	f.Log.Add("provider.delete")
	f.mu.Lock()
	if f.DeleteErr != nil {
		f.mu.Unlock()
		return f.DeleteErr
	}
	if f.current == nil {
		f.mu.Unlock()
		return &identity.Error{Code: identity.CodeNoCurrentUser}
	}
	delete(f.accounts, f.current.Email)
	f.current = nil
	f.mu.Unlock()

	f.Emit(nil)
	return nil
}

func (f *FakeProvider) SignOut(context.Context) error {
	f.Log.Add("provider.signout")
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	f.Emit(nil)
	return nil
}

func (f *FakeProvider) Current() *identity.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	c := *f.current
	return &c
}

func (f *FakeProvider) Subscribe() (<-chan *identity.Identity, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan *identity.Identity, 16)
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	if f.current != nil {
		c := *f.current
		ch <- &c
	} else {
		ch <- nil
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

// Subscribers is the number of live subscriptions.
func (f *FakeProvider) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Emit pushes an auth-state change to every subscriber without touching current.
func (f *FakeProvider) Emit(id *identity.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		var c *identity.Identity
		if id != nil {
			cp := *id
			c = &cp
		}
		select {
		case ch <- c:
		default:
		}
	}
}
