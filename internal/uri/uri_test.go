package uri

import "testing"

func TestLocalModeRoundTrip(t *testing.T) {
	r := New("/home/dev/project", false)
	u := r.ToURI("pkg/foo.go")
	rel, ok := r.FromURI(u)
	if !ok {
		t.Fatalf("expected FromURI to resolve %s", u)
	}
	if rel != "pkg/foo.go" {
		t.Fatalf("got %q", rel)
	}
}

func TestContainerModeRebasesToWorkspace(t *testing.T) {
	r := New("/home/dev/project", true)
	u := r.ToURI("pkg/foo.go")
	if u != "file:///workspace/pkg/foo.go" {
		t.Fatalf("got %q", u)
	}
	rel, ok := r.FromURI(u)
	if !ok || rel != "pkg/foo.go" {
		t.Fatalf("got %q ok=%v", rel, ok)
	}
}

func TestFromURIRejectsForeignRoot(t *testing.T) {
	r := New("/home/dev/project", false)
	if _, ok := r.FromURI("file:///etc/passwd"); ok {
		t.Fatalf("did not expect a path outside the project root to resolve")
	}
}

func TestFromURIPercentDecodesPath(t *testing.T) {
	r := New("/home/dev/my project", false)
	rel, ok := r.FromURI("file:///home/dev/my%20project/pkg%20two/foo.go")
	if !ok {
		t.Fatalf("expected a percent-encoded URI under the project root to resolve")
	}
	if rel != "pkg two/foo.go" {
		t.Fatalf("got %q", rel)
	}
}
