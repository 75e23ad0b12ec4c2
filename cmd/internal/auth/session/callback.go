package session

import (
	"context"
	"errors"
	"sync"

	"ssod/cmd/internal/auth/account"
)

// Callback receives the outcome of one operation.
//
// OnResult fires exactly once. On success, when the result carries an account,
// OnAccountDelivered follows. Errors returned by either method mean the caller
// is unreachable; they are logged and dropped, never retried.
type Callback interface {
	OnResult(Result) error
	OnAccountDelivered(account.Account) error
}

// CallbackFuncs adapts plain functions to Callback. Nil fields are no-ops.
type CallbackFuncs struct {
	Result  func(Result) error
	Account func(account.Account) error
}

func (f CallbackFuncs) OnResult(r Result) error {
	if f.Result == nil {
		return nil
	}
	return f.Result(r)
}

func (f CallbackFuncs) OnAccountDelivered(a account.Account) error {
	if f.Account == nil {
		return nil
	}
	return f.Account(a)
}

// ErrPromiseSettled is returned by a Promise that already received its result.
var ErrPromiseSettled = errors.New("promise already settled")

// Promise is a one-shot Callback that can be waited on.
// It settles after OnResult, or after OnAccountDelivered when the result carries an account.
type Promise struct {
	mu        sync.Mutex
	res       Result
	delivered *account.Account
	gotResult bool
	done      chan struct{}
	once      sync.Once
}

func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

var _ Callback = (*Promise)(nil)

func (p *Promise) OnResult(r Result) error {
	p.mu.Lock()
	if p.gotResult {
		p.mu.Unlock()
		return ErrPromiseSettled
	}
	p.gotResult = true
	p.res = r
	p.mu.Unlock()

	if !r.Success || r.Account == nil {
		p.settle()
	}
	return nil
}

func (p *Promise) OnAccountDelivered(a account.Account) error {
	p.mu.Lock()
	if !p.gotResult || p.delivered != nil {
		p.mu.Unlock()
		return ErrPromiseSettled
	}
	c := a.Clone()
	p.delivered = &c
	p.mu.Unlock()

	p.settle()
	return nil
}

func (p *Promise) settle() { p.once.Do(func() { close(p.done) }) }

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Wait blocks until the promise settles or ctx is done.
func (p *Promise) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Delivered returns the account passed to OnAccountDelivered, if any.
func (p *Promise) Delivered() (account.Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.delivered == nil {
		return account.Account{}, false
	}
	return p.delivered.Clone(), true
}
