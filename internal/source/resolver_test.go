package source

import (
	"path"
	"strings"
	"testing"
	"time"

	"github.com/any-hub/asset-hub/internal/classify"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	endpoints := Endpoints{
		AssetBaseURL:    "http://assets.test/",
		LibraryBaseURL:  "http://libraries.test",
		ArtifactBaseURL: "http://maven.test/maven2",
		VersionTemplate: "http://meta.test/version/{version}/{kind}",
		Mirrors: []Mirror{
			{Prefix: "net/", BaseURL: "http://net-mirror.test"},
			{Prefix: "net/minecraftforge/", BaseURL: "http://forge.test", Timeout: 5 * time.Second},
		},
		Loaders: []Loader{
			{Token: "neoforge", Group: "net/neoforged", BaseURL: "http://neoforged.test/releases"},
			{Token: "forge", Group: "net/minecraftforge", BaseURL: "http://forge.test"},
		},
		Timeout: 10 * time.Second,
	}
	return NewResolver(endpoints, classify.New(classify.DefaultRules()))
}

func TestResolveContentAssetSingleCandidate(t *testing.T) {
	r := newTestResolver(t)
	hashes := []string{
		"5cca35534cc2ee3529d39b7ccc12b437955e0683",
		"5df4a02b1ebc550514841fddb7d64b9c497d40b4",
		"0000000000000000000000000000000000000000",
	}
	for _, hash := range hashes {
		rel := "assets/objects/" + hash[:2] + "/" + hash
		candidates := r.Resolve(rel, hash, classify.ContentAsset)
		if len(candidates) != 1 {
			t.Fatalf("expected exactly one candidate for %s, got %d", hash, len(candidates))
		}
		u := candidates[0].URL
		if path.Base(u) != hash || path.Base(path.Dir(u)) != hash[:2] {
			t.Fatalf("candidate %s does not end with %s/%s", u, hash[:2], hash)
		}
		if !strings.HasPrefix(u, "http://assets.test/") || strings.Contains(u, "test//") {
			t.Fatalf("unexpected asset url %s", u)
		}
	}
}

func TestResolveSharedLibraryOrder(t *testing.T) {
	r := newTestResolver(t)
	rel := "libraries/net/minecraftforge/forge/1.20.1-47.2.0/forge-1.20.1-47.2.0-universal.jar"
	candidates := r.Resolve(rel, path.Base(rel), classify.SharedLibrary)
	want := []string{
		"http://forge.test/net/minecraftforge/forge/1.20.1-47.2.0/forge-1.20.1-47.2.0-universal.jar",
		"http://libraries.test/net/minecraftforge/forge/1.20.1-47.2.0/forge-1.20.1-47.2.0-universal.jar",
		"http://maven.test/maven2/net/minecraftforge/forge/1.20.1-47.2.0/forge-1.20.1-47.2.0-universal.jar",
	}
	if len(candidates) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(candidates), candidates)
	}
	for i, c := range candidates {
		if c.URL != want[i] {
			t.Fatalf("candidate %d = %s, want %s", i, c.URL, want[i])
		}
		if c.Rank != i {
			t.Fatalf("candidate %d has rank %d", i, c.Rank)
		}
	}
	if candidates[0].Timeout != 5*time.Second {
		t.Fatalf("mirror timeout override not applied: %s", candidates[0].Timeout)
	}
	if candidates[1].Timeout != 10*time.Second {
		t.Fatalf("default timeout not applied: %s", candidates[1].Timeout)
	}
}

func TestResolveSharedLibraryWithoutVendorMirror(t *testing.T) {
	r := newTestResolver(t)
	rel := "libraries/com/google/guava/guava/32.1.2-jre/guava-32.1.2-jre.jar"
	candidates := r.Resolve(rel, path.Base(rel), classify.SharedLibrary)
	if len(candidates) != 2 {
		t.Fatalf("expected library + artifact candidates, got %+v", candidates)
	}
	if !strings.HasPrefix(candidates[0].URL, "http://libraries.test/") {
		t.Fatalf("library mirror should come first, got %s", candidates[0].URL)
	}
}

func TestResolveBuildArtifactFromFileName(t *testing.T) {
	r := newTestResolver(t)
	testCases := []struct {
		rel  string
		want string
	}{
		{
			"installers/forge-1.20.1-47.2.0-installer.jar",
			"http://forge.test/net/minecraftforge/forge/1.20.1-47.2.0/forge-1.20.1-47.2.0-installer.jar",
		},
		{
			"installers/neoforge-20.4.237-installer.jar",
			"http://neoforged.test/releases/net/neoforged/neoforge/20.4.237/neoforge-20.4.237-installer.jar",
		},
	}
	for _, tc := range testCases {
		candidates := r.Resolve(tc.rel, path.Base(tc.rel), classify.BuildArtifact)
		if len(candidates) != 1 || candidates[0].URL != tc.want {
			t.Fatalf("Resolve(%s) = %+v, want %s", tc.rel, candidates, tc.want)
		}
	}
}

func TestResolveVersionDescriptor(t *testing.T) {
	r := newTestResolver(t)
	candidates := r.Resolve("versions/1.20.1/1.20.1.json", "1.20.1.json", classify.VersionDescriptor)
	if len(candidates) != 1 || candidates[0].URL != "http://meta.test/version/1.20.1/json" {
		t.Fatalf("unexpected descriptor candidates %+v", candidates)
	}
	candidates = r.Resolve("versions/1.20.1/1.20.1.jar", "1.20.1.jar", classify.VersionDescriptor)
	if len(candidates) != 1 || candidates[0].URL != "http://meta.test/version/1.20.1/client" {
		t.Fatalf("unexpected client jar candidates %+v", candidates)
	}
}

func TestResolveEmptyForLocalOnlyCategories(t *testing.T) {
	r := newTestResolver(t)
	for _, category := range []classify.Category{classify.NativeBinary, classify.Unknown, classify.TemporaryOrIgnorable} {
		if got := r.Resolve("natives/foo.dll", "foo.dll", category); len(got) != 0 {
			t.Fatalf("expected no candidates for %s, got %+v", category, got)
		}
	}
}

func TestResolveMalformedInputReturnsEmpty(t *testing.T) {
	r := newTestResolver(t)
	testCases := []struct {
		rel      string
		name     string
		category classify.Category
	}{
		{"", "", classify.ContentAsset},
		{"assets/objects/zz/not-a-hash", "not-a-hash", classify.ContentAsset},
		{"libraries", "libraries", classify.SharedLibrary},
		{"libraries/../../etc/passwd", "passwd", classify.SharedLibrary},
		{"versions", "versions", classify.VersionDescriptor},
		{"mods/forge", "forge", classify.BuildArtifact},
	}
	for _, tc := range testCases {
		if got := r.Resolve(tc.rel, tc.name, tc.category); len(got) != 0 {
			t.Fatalf("expected empty candidates for %q, got %+v", tc.rel, got)
		}
	}
}

func TestResolveVersionWithoutTemplate(t *testing.T) {
	endpoints := DefaultEndpoints()
	endpoints.VersionTemplate = ""
	r := NewResolver(endpoints, nil)
	if got := r.Resolve("versions/1.20.1/1.20.1.json", "1.20.1.json", classify.VersionDescriptor); len(got) != 0 {
		t.Fatalf("expected no candidates without template, got %+v", got)
	}
}
