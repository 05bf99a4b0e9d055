package hgvs

import "testing"

func mustParse(t *testing.T, s string) *Variant {
	t.Helper()
	res := NewParser().Parse(s)
	if !res.OK() {
		t.Fatalf("Parse(%q) failed: %v", s, res.Failure)
	}
	return res.Variant
}

func TestEquivalent(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "NM_000001.1:c.123A>G", "NM_000001.1:c.123A>G", true},
		{"deletion with and without reference", "NM_004006.2:c.5697delA", "NM_004006.2:c.5697del", true},
		{"delins with and without deleted bases", "NM_004006.2:c.10_12delTACinsG", "NM_004006.2:c.10_12delinsG", true},
		{"different alt", "NM_000001.1:c.123A>G", "NM_000001.1:c.123A>T", false},
		{"different position", "NM_000001.1:c.123A>G", "NM_000001.1:c.124A>G", false},
		{"different accession", "NM_000001.1:c.123A>G", "NM_000001.2:c.123A>G", false},
		{"different edit", "NM_004006.2:c.5697del", "NM_004006.2:c.5697dup", false},
		{"different deleted bases", "NM_004006.2:c.5697delA", "NM_004006.2:c.5697delC", false},
		{"different level", "NM_000001.1:c.123del", "NM_000001.1:n.123del", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := mustParse(t, tt.a), mustParse(t, tt.b)
			if got := Equivalent(a, b); got != tt.want {
				t.Errorf("Equivalent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := Equivalent(b, a); got != tt.want {
				t.Errorf("Equivalent is not symmetric for %q, %q", tt.a, tt.b)
			}
		})
	}
}

func TestEquivalentNil(t *testing.T) {
	v := mustParse(t, "NM_000001.1:c.123A>G")
	if Equivalent(v, nil) {
		t.Error("variant should not be equivalent to nil")
	}
	if !Equivalent(nil, nil) {
		t.Error("nil should be equivalent to nil")
	}
}

func TestCompleteness(t *testing.T) {
	if got := mustParse(t, "NM_004006.2:c.5697del").Completeness(); got != 0 {
		t.Errorf("Completeness() = %d, want 0", got)
	}
	if got := mustParse(t, "NM_000001.1:c.123A>G").Completeness(); got != 2 {
		t.Errorf("Completeness() = %d, want 2", got)
	}
}
