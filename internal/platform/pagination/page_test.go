package pagination

import "testing"

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 10, Max: 50}

	if got := ClampPageSize(0, cfg); got != 10 {
		t.Fatalf("zero -> %d, want default 10", got)
	}
	if got := ClampPageSize(-3, cfg); got != 10 {
		t.Fatalf("negative -> %d, want default 10", got)
	}
	if got := ClampPageSize(25, cfg); got != 25 {
		t.Fatalf("in range -> %d, want 25", got)
	}
	if got := ClampPageSize(500, cfg); got != 50 {
		t.Fatalf("above max -> %d, want 50", got)
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("unconfigured -> %d, want 1", got)
	}
}
