package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
)

type testPlugin struct {
	name     string
	issued   int
	redeemed int
	fail     bool
}

func (p *testPlugin) Name() string { return p.name }

func (p *testPlugin) OnCodeIssued(_ context.Context, _ *code.InviteCode) error {
	p.issued++
	if p.fail {
		return errors.New("boom")
	}
	return nil
}

func (p *testPlugin) OnCodeRedeemed(_ context.Context, _ *claim.Claim) error {
	p.redeemed++
	return nil
}

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	p := &testPlugin{name: "test"}
	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}

	ctx := context.Background()
	r.EmitCodeIssued(ctx, &code.InviteCode{Code: "AAAAAAAA"})
	r.EmitCodeRedeemed(ctx, &claim.Claim{Code: "AAAAAAAA"})
	// Hooks the plugin does not implement are skipped without error.
	r.EmitQuotaExhausted(ctx, "0xaaa")

	if p.issued != 1 || p.redeemed != 1 {
		t.Errorf("dispatch counts = %d/%d, want 1/1", p.issued, p.redeemed)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&testPlugin{name: "dup"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&testPlugin{name: "dup"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestHookErrorsDoNotPropagate(t *testing.T) {
	r := NewRegistry()
	p := &testPlugin{name: "failing", fail: true}
	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Must not panic or surface the error.
	r.EmitCodeIssued(context.Background(), &code.InviteCode{Code: "AAAAAAAA"})
	if p.issued != 1 {
		t.Errorf("issued = %d, want 1", p.issued)
	}
}
