package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leozw/zone-health/internal/config"
	"github.com/leozw/zone-health/internal/logging"

	. "github.com/onsi/gomega"
)

func TestNew_WritesToFile(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "zone-health.log")
	logger, err := logging.New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	g.Expect(err).ToNot(HaveOccurred())

	logger.Info("Check completed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring(`"msg":"Check completed"`))
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	g := NewWithT(t)

	_, err := logging.New(config.LogConfig{Level: "loud"})
	g.Expect(err).To(HaveOccurred())
}
