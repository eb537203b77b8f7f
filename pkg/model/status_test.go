package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusQueued, StatusSuccess, StatusFailed, StatusCompleted}
	allowed := map[[2]Status]bool{
		{StatusQueued, StatusSuccess}:    true,
		{StatusQueued, StatusFailed}:     true,
		{StatusSuccess, StatusCompleted}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
			err := ValidateTransition(from, to)
			if want && err != nil {
				t.Errorf("ValidateTransition(%s, %s) = %v", from, to, err)
			}
			if !want && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("ValidateTransition(%s, %s) should fail, got %v", from, to, err)
			}
		}
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusSuccess, StatusFailed, StatusCompleted} {
		parsed, err := ParseStatus(s.String())
		if err != nil || parsed != s {
			t.Errorf("ParseStatus(%q) = %v, %v", s.String(), parsed, err)
		}
	}

	if _, err := ParseStatus("RUNNING"); err == nil {
		t.Error("expected error for unknown status")
	}

	b, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"status":"COMPLETED"}` {
		t.Errorf("json = %s", b)
	}

	var decoded struct {
		Status Status `json:"status"`
	}
	if err := json.Unmarshal([]byte(`{"status":"FAILED"}`), &decoded); err != nil || decoded.Status != StatusFailed {
		t.Errorf("Unmarshal = %v, %v", decoded.Status, err)
	}
}
