package gitmeta

import "testing"

func TestLookupNonGitDirectoryReturnsZeroValue(t *testing.T) {
	info, err := Lookup(t.TempDir())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.CommitHash != "" || info.RemoteURL != "" {
		t.Fatalf("expected zero-valued Info for a non-git directory, got %+v", info)
	}
}
