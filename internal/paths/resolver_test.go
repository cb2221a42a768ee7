package paths

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestResolve(t *testing.T) {
	r := New(map[string]string{
		"share":  "/share",
		"media:": "/media/",
		"scans":  "/share/scans",
	})

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"share:inbox/photo.jpg", "/share/inbox/photo.jpg", false},
		{"media:camera/IMG_0001.JPG", "/media/camera/IMG_0001.JPG", false},
		{"scans:receipt.pdf", "/share/scans/receipt.pdf", false},
		{"share:", "/share", false},
		{"/tmp/file.txt", "/tmp/file.txt", false},
		{"unknown:file.txt", "unknown:file.txt", false},
		{"share:../etc/passwd", "", true},
		{"share:inbox/../../root", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.Resolve(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolve_LongerRootFirst(t *testing.T) {
	r := New(map[string]string{"s": "/short", "share": "/share"})
	got, err := r.Resolve("share:a.txt")
	if err != nil || got != "/share/a.txt" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}
}

func TestNilResolver(t *testing.T) {
	var r *Resolver
	if New(nil) != nil {
		t.Error("New(nil) should return nil")
	}
	if got, err := r.Resolve("share:x"); err != nil || got != "share:x" {
		t.Errorf("nil Resolve() = %q, %v", got, err)
	}
	if r.Roots() != nil {
		t.Error("nil Roots() should be nil")
	}
}

func TestRoots(t *testing.T) {
	r := New(map[string]string{"media": "/media", "share": "/share", "backup": "/backup"})
	if got := r.Roots(); !slices.Equal(got, []string{"backup", "media", "share"}) {
		t.Errorf("Roots() = %v", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~":            home,
		"~/Pictures":   filepath.Join(home, "Pictures"),
		"/abs/path":    "/abs/path",
		"~other/thing": "~other/thing",
	}
	for in, want := range tests {
		if got := ExpandHome(in); got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
