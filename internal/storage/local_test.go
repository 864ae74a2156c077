package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLocalStore(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "jobs", "nested")

		store, err := NewLocalStore(root)
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		if store.Root() != root {
			t.Errorf("Root() = %v, want %v", store.Root(), root)
		}

		info, err := os.Stat(root)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		store, err := NewLocalStore("")
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "flashcut")
		if store.Root() != expected {
			t.Errorf("Root() = %v, want %v", store.Root(), expected)
		}
	})
}

func TestLocalStore_CreateJob(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("creates job directory", func(t *testing.T) {
		dir, err := store.CreateJob(ctx, "20240101_120000_abcd1234")
		if err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}

		want := filepath.Join(store.Root(), "20240101_120000_abcd1234")
		if dir != want {
			t.Errorf("CreateJob() = %v, want %v", dir, want)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("job directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("existing job is not an error", func(t *testing.T) {
		if _, err := store.CreateJob(ctx, "repeat"); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		if _, err := store.CreateJob(ctx, "repeat"); err != nil {
			t.Errorf("CreateJob() second call error = %v", err)
		}
	})

	t.Run("rejects path-escaping IDs", func(t *testing.T) {
		for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
			if _, err := store.CreateJob(ctx, id); !errors.Is(err, ErrInvalidName) {
				t.Errorf("CreateJob(%q) error = %v, want ErrInvalidName", id, err)
			}
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := store.CreateJob(ctx, "cancelled"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_SaveFile(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("saves data under the job", func(t *testing.T) {
		path, err := store.SaveFile(ctx, "job1", "track.wav", bytes.NewReader([]byte("test data")))
		if err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}

		want := filepath.Join(store.Root(), "job1", "track.wav")
		if path != want {
			t.Errorf("SaveFile() = %v, want %v", path, want)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test data" {
			t.Errorf("got %q, want %q", string(content), "test data")
		}
	})

	t.Run("strips directories from the name", func(t *testing.T) {
		path, err := store.SaveFile(ctx, "job1", "../../evil.txt", bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}

		want := filepath.Join(store.Root(), "job1", "evil.txt")
		if path != want {
			t.Errorf("SaveFile() = %v, want %v", path, want)
		}
	})

	t.Run("strips Windows-style directories", func(t *testing.T) {
		path, err := store.SaveFile(ctx, "job1", `C:\music\track.wav`, bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}

		if got := filepath.Base(path); got != "track.wav" {
			t.Errorf("saved as %q, want %q", got, "track.wav")
		}
	})

	t.Run("rejects unusable names", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "/"} {
			if _, err := store.SaveFile(ctx, "job1", name, bytes.NewReader(nil)); !errors.Is(err, ErrInvalidName) {
				t.Errorf("SaveFile(%q) error = %v, want ErrInvalidName", name, err)
			}
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.SaveFile(ctx, "job1", "file", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_FilePath(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	saved, err := store.SaveFile(ctx, "job2", "cuts.json", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	t.Run("resolves stored file", func(t *testing.T) {
		path, err := store.FilePath("job2", "cuts.json")
		if err != nil {
			t.Fatalf("FilePath() error = %v", err)
		}
		if path != saved {
			t.Errorf("FilePath() = %v, want %v", path, saved)
		}
	})

	t.Run("returns ErrNotFound for missing file", func(t *testing.T) {
		if _, err := store.FilePath("job2", "missing.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("returns ErrNotFound for missing job", func(t *testing.T) {
		if _, err := store.FilePath("no-such-job", "cuts.json"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("never resolves directories", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(store.Root(), "job2", "sub"), 0750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if _, err := store.FilePath("job2", "sub"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects path-escaping IDs", func(t *testing.T) {
		if _, err := store.FilePath("../job2", "cuts.json"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("expected ErrInvalidName, got %v", err)
		}
	})
}

func TestLocalStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("lists files sorted by name", func(t *testing.T) {
		if _, err := store.SaveFile(ctx, "job3", "waveform.png", bytes.NewReader([]byte("12345"))); err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}
		if _, err := store.SaveFile(ctx, "job3", "cuts.json", bytes.NewReader([]byte("{}"))); err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}
		if err := os.Mkdir(filepath.Join(store.Root(), "job3", "work"), 0750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		artifacts, err := store.List(ctx, "job3")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}

		if len(artifacts) != 2 {
			t.Fatalf("List() returned %d artifacts, want 2", len(artifacts))
		}
		if artifacts[0].Name != "cuts.json" || artifacts[0].Size != 2 {
			t.Errorf("artifacts[0] = %+v, want cuts.json size 2", artifacts[0])
		}
		if artifacts[1].Name != "waveform.png" || artifacts[1].Size != 5 {
			t.Errorf("artifacts[1] = %+v, want waveform.png size 5", artifacts[1])
		}
	})

	t.Run("returns ErrNotFound for missing job", func(t *testing.T) {
		if _, err := store.List(ctx, "no-such-job"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := store.List(ctx, "job3"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_RemoveFile(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("removes a stored file", func(t *testing.T) {
		path, err := store.SaveFile(ctx, "job4", "upload.mp3", bytes.NewReader([]byte("data")))
		if err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}

		if err := store.RemoveFile(ctx, "job4", "upload.mp3"); err != nil {
			t.Fatalf("RemoveFile() error = %v", err)
		}

		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file %s still exists", path)
		}
	})

	t.Run("ignores missing files", func(t *testing.T) {
		if err := store.RemoveFile(ctx, "job4", "already-gone.mp3"); err != nil {
			t.Errorf("RemoveFile() should ignore missing files, got %v", err)
		}
	})
}

func TestLocalStore_RemoveJob(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	dir, err := store.CreateJob(ctx, "job5")
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if _, err := store.SaveFile(ctx, "job5", "final_video.mp4", bytes.NewReader([]byte("video"))); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	if err := store.RemoveJob(ctx, "job5"); err != nil {
		t.Fatalf("RemoveJob() error = %v", err)
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("job directory %s still exists", dir)
	}

	if err := store.RemoveJob(ctx, "job5"); err != nil {
		t.Errorf("RemoveJob() on missing job error = %v", err)
	}
}

func TestLocalStore_UploadToS3(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.UploadToS3(ctx, "key", bytes.NewReader([]byte("data")))
	if err != ErrS3NotConfigured {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStore(t *testing.T) *LocalStore {
	t.Helper()

	store, err := NewLocalStore(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
