package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"ssod/cmd/internal/auth/account"
)

func TestPromise_SettlesOnFailure(t *testing.T) {
	t.Parallel()

	p := NewPromise()
	if err := p.OnResult(validationFailure("nope")); err != nil {
		t.Fatalf("on result: %v", err)
	}

	select {
	case <-p.Done():
	default:
		t.Fatalf("expected promise settled after failure result")
	}

	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if res.Success || !errors.Is(res.Err, ErrValidation) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := p.OnResult(okResult("again", nil)); !errors.Is(err, ErrPromiseSettled) {
		t.Fatalf("expected ErrPromiseSettled on second result, got %v", err)
	}
}

func TestPromise_WaitsForAccount(t *testing.T) {
	t.Parallel()

	a := account.Account{GUID: "g1", Mail: "a@x", SessionToken: "t", IsActive: true}
	p := NewPromise()
	_ = p.OnResult(okResult(msgLoginOK, accountPtr(a)))

	select {
	case <-p.Done():
		t.Fatalf("promise must wait for the account delivery")
	default:
	}

	if err := p.OnAccountDelivered(a); err != nil {
		t.Fatalf("on account: %v", err)
	}
	got, ok := p.Delivered()
	if !ok || !got.Equal(a) {
		t.Fatalf("unexpected delivered account: ok=%v %+v", ok, got)
	}
	if _, err := p.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestPromise_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := NewPromise().Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCallbackFuncs_NilFieldsAreNoops(t *testing.T) {
	t.Parallel()

	var cb CallbackFuncs
	if err := cb.OnResult(Result{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cb.OnAccountDelivered(account.Account{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
