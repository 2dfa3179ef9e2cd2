package rules

import (
	"testing"
)

func TestEvaluate_RejectHeader(t *testing.T) {
	r, err := New(Options{
		RejectHeader: []string{`Subject:.*viagra`},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header := []byte("From: spammer@example.com\nSubject: cheap viagra\n")
	body := []byte("buy now")

	if got := r.Evaluate(header, body); got != ActionReject {
		t.Errorf("Evaluate() = %v, want reject", got)
	}

	clean := []byte("From: friend@example.com\nSubject: lunch\n")
	if got := r.Evaluate(clean, body); got != ActionDeliver {
		t.Errorf("Evaluate() = %v, want deliver", got)
	}
}

func TestEvaluate_DiscardBody(t *testing.T) {
	r, err := New(Options{
		DiscardBody: []string{`unsubscribe`},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header := []byte("Subject: newsletter\n")
	if got := r.Evaluate(header, []byte("click to unsubscribe")); got != ActionDiscard {
		t.Errorf("Evaluate() = %v, want discard", got)
	}
	if got := r.Evaluate(header, []byte("personal note")); got != ActionDeliver {
		t.Errorf("Evaluate() = %v, want deliver", got)
	}
}

func TestEvaluate_RejectWinsOverDiscard(t *testing.T) {
	r, err := New(Options{
		RejectBody:  []string{`spam`},
		DiscardBody: []string{`spam`},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := r.Evaluate(nil, []byte("pure spam")); got != ActionReject {
		t.Errorf("Evaluate() = %v, want reject to win", got)
	}
}

func TestEvaluate_NoRules(t *testing.T) {
	r, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := r.Evaluate([]byte("Subject: anything\n"), []byte("anything")); got != ActionDeliver {
		t.Errorf("Evaluate() = %v, want deliver when no rules are active", got)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Options{RejectHeader: []string{`[unclosed`}})
	if err == nil {
		t.Error("New() error = nil, want compile error")
	}
}

func TestNew_BlankPatternsSkipped(t *testing.T) {
	r, err := New(Options{RejectHeader: []string{"  ", ""}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := r.Evaluate([]byte("Subject: x\n"), nil); got != ActionDeliver {
		t.Errorf("Evaluate() = %v, want deliver; blank patterns must not match", got)
	}
}

func TestActionString(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionDeliver, "deliver"},
		{ActionReject, "reject"},
		{ActionDiscard, "discard"},
	}
	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("Action(%d).String() = %q, want %q", tt.action, got, tt.want)
		}
	}
}
