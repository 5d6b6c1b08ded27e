package model

import (
	"errors"
	"testing"
)

func TestParseTargets(t *testing.T) {
	targets, err := ParseTargets("fnA,fnB")
	if err != nil {
		t.Fatalf("ParseTargets: %v", err)
	}
	if len(targets) != 2 || targets[0] != "fnA" || targets[1] != "fnB" {
		t.Errorf("targets = %v, want [fnA fnB]", targets)
	}
}

func TestParseTargets_TrimsAndDropsEmpty(t *testing.T) {
	targets, err := ParseTargets("fnA, ,fnC")
	if err != nil {
		t.Fatalf("ParseTargets: %v", err)
	}
	if len(targets) != 2 || targets[0] != "fnA" || targets[1] != "fnC" {
		t.Errorf("targets = %v, want [fnA fnC]", targets)
	}
}

func TestParseTargets_PreservesOrderAndDuplicates(t *testing.T) {
	targets, err := ParseTargets("fnB, fnA ,fnB")
	if err != nil {
		t.Fatalf("ParseTargets: %v", err)
	}
	want := []string{"fnB", "fnA", "fnB"}
	if len(targets) != len(want) {
		t.Fatalf("got %d targets, want %d", len(targets), len(want))
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Errorf("targets[%d] = %q, want %q", i, targets[i], want[i])
		}
	}
}

func TestParseTargets_Empty(t *testing.T) {
	for _, raw := range []string{"", " ", ",", " , ,"} {
		_, err := ParseTargets(raw)
		if err == nil {
			t.Errorf("ParseTargets(%q): expected error", raw)
			continue
		}
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("ParseTargets(%q): error %v is not a ConfigError", raw, err)
		}
	}
}
