package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leozw/zone-health/internal/storage"
	"github.com/leozw/zone-health/internal/storage/file"

	. "github.com/onsi/gomega"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "data", "overrides.json")

	s, err := file.New(path)
	g.Expect(err).ToNot(HaveOccurred())

	_, ok, err := s.Get(ctx, "missing")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(ok).To(BeFalse())

	g.Expect(s.Set(ctx, "k", "v1")).To(Succeed())
	g.Expect(s.Set(ctx, "k", "v2")).To(Succeed())
	g.Expect(s.Close()).To(Succeed())

	reopened, err := file.New(path)
	g.Expect(err).ToNot(HaveOccurred())

	v, ok, err := reopened.Get(ctx, "k")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(ok).To(BeTrue())
	g.Expect(v).To(Equal("v2"))
}

func TestStore_EmptyFile(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "overrides.json")
	g.Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())

	_, err := file.New(path)
	g.Expect(err).ToNot(HaveOccurred())
}

func TestStore_CorruptFile(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "overrides.json")
	g.Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())

	_, err := file.New(path)
	g.Expect(err).To(HaveOccurred())
}

func TestStore_Closed(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	s, err := file.New(filepath.Join(t.TempDir(), "overrides.json"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(s.Close()).To(Succeed())

	g.Expect(s.Set(ctx, "k", "v")).To(MatchError(storage.ErrClosed))
	_, _, err = s.Get(ctx, "k")
	g.Expect(err).To(MatchError(storage.ErrClosed))
}
