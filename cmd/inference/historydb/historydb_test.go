package historydb_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fuhaigao/inference-server/cmd/inference/historydb"
	"github.com/fuhaigao/inference-server/pkg/logger"
)

var _ = Describe("Resolve", func() {
	It("prefers an explicit sqlite path", func() {
		b, err := historydb.Resolve(historydb.Options{
			SQLitePath:  "/tmp/custom.db",
			PostgresDSN: "postgres://localhost/x",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(historydb.Backend{Kind: "sqlite", Target: "/tmp/custom.db"}))
	})

	It("uses postgres when only a DSN is set", func() {
		b, err := historydb.Resolve(historydb.Options{PostgresDSN: "postgres://localhost/x"})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Kind).To(Equal("postgres"))
	})

	It("is disabled without a backend", func() {
		_, err := historydb.Resolve(historydb.Options{})
		Expect(err).To(MatchError(historydb.ErrDisabled))
	})

	It("defaults to history.db in the config dir when enabled", func() {
		dir := GinkgoT().TempDir()
		b, err := historydb.Resolve(historydb.Options{Enabled: true, ConfigDir: dir})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Kind).To(Equal("sqlite"))
		Expect(b.Target).To(Equal(filepath.Join(dir, historydb.DefaultFileName)))
	})
})

var _ = Describe("Open", func() {
	It("opens a sqlite history", func() {
		path := filepath.Join(GinkgoT().TempDir(), "h.db")
		d, err := historydb.Open(context.Background(), historydb.Options{SQLitePath: path}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Close()).To(Succeed())
	})
})
