package hashcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phobologic/vamdeps/internal/model"
)

var stamp = time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	c, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a corrupt cache")
	}
}

func TestLoadOtherVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(`{"version":99,"entries":{"/a":{"size":1}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Put("/Vam/Custom/A.vam", Entry{Size: 10, Modified: stamp, Identity: "uid-a"})
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, ok := again.Lookup("/vam/custom/a.VAM")
	if !ok {
		t.Fatal("entry not found case-insensitively")
	}
	if e.Size != 10 || e.Identity != "uid-a" || !e.Modified.Equal(stamp) {
		t.Errorf("entry = %+v", e)
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	cloth := model.NewFreeFile("/vam/Custom/Clothing/Female/a/a.vam", "Custom/Clothing/Female/a/a.vam", 10, true, stamp, "")
	morph := model.NewFreeFile("/vam/Custom/Atom/Person/Morphs/female/m.vmi", "Custom/Atom/Person/Morphs/female/m.vmi", 5, true, stamp, "")
	changed := model.NewFreeFile("/vam/Saves/scene/s.json", "Saves/scene/s.json", 99, true, stamp, "")
	fresh := model.NewFreeFile("/vam/Saves/scene/new.json", "Saves/scene/new.json", 1, true, stamp, "")
	texture := model.NewFreeFile("/vam/Custom/a.jpg", "Custom/a.jpg", 1, true, stamp, "")
	linked := model.NewFreeFile("/vam/Custom/Hair/Male/h.vam", "Custom/Hair/Male/h.vam", 3, true, stamp, "/store/h.vam")

	c := &Cache{entries: map[string]Entry{}}
	c.Put(cloth.FullPath(), Entry{Size: 10, Modified: stamp, Identity: "cloth-uid"})
	c.Put(morph.FullPath(), Entry{Size: 5, Modified: stamp, Identity: "Smile"})
	c.Put(changed.FullPath(), Entry{Size: 1, Modified: stamp})
	c.Put("/store/h.vam", Entry{Size: 3, Modified: stamp, Identity: "hair-uid"})

	dirty := c.Apply([]*model.FreeFile{cloth, morph, changed, fresh, texture, linked})
	if dirty != 2 {
		t.Errorf("dirty = %d, want 2", dirty)
	}

	cases := []struct {
		name      string
		file      *model.FreeFile
		wantDirty bool
	}{
		{"cached cloth", cloth, false},
		{"cached morph", morph, false},
		{"size changed", changed, true},
		{"not cached", fresh, true},
		{"untracked", texture, false},
		{"soft link keyed by source", linked, false},
	}
	for _, tc := range cases {
		if tc.file.Dirty() != tc.wantDirty {
			t.Errorf("%s: Dirty = %v, want %v", tc.name, tc.file.Dirty(), tc.wantDirty)
		}
	}

	if cloth.InternalID() != "cloth-uid" {
		t.Errorf("cloth InternalID = %q", cloth.InternalID())
	}
	if morph.MorphName() != "Smile" {
		t.Errorf("morph MorphName = %q", morph.MorphName())
	}
	if linked.InternalID() != "hair-uid" {
		t.Errorf("linked InternalID = %q", linked.InternalID())
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	parent := model.NewFreeFile("/vam/Custom/Clothing/Female/a/a.vam", "Custom/Clothing/Female/a/a.vam", 10, true, stamp, "")
	parent.SetInternalID("uid-a")
	child := model.NewFreeFile("/vam/Custom/Clothing/Female/a/a.vaj", "Custom/Clothing/Female/a/a.vaj", 4, true, stamp, "")
	parent.AddChild(child)

	c := &Cache{entries: map[string]Entry{}}
	c.Update([]*model.FreeFile{parent})

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (only the descriptor is tracked)", c.Len())
	}
	e, ok := c.Lookup(parent.FullPath())
	if !ok || e.Identity != "uid-a" || e.Size != 10 {
		t.Errorf("entry = %+v, %v", e, ok)
	}
}
