package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/registry"

	. "github.com/onsi/gomega"
)

func noop() core.Checker {
	return core.CheckerFunc(func(context.Context, core.ExecutionContext) (core.Outcome, error) {
		return core.Healthy("ok"), nil
	})
}

func def(name string) core.Definition {
	return core.Definition{Name: name, Active: true, Checker: noop()}
}

func TestLoad_AssignsPositionalIDsInDeclarationOrder(t *testing.T) {
	g := NewWithT(t)

	r, err := registry.Load(
		[]core.Definition{def("a"), def("b")},
		[]core.Definition{def("c")},
	)
	g.Expect(err).ToNot(HaveOccurred())

	ids := make([]string, 0, r.Len())
	for _, d := range r.List() {
		ids = append(ids, d.ID)
	}
	g.Expect(ids).To(Equal([]string{"zmt-0", "zmt-1", "zmt-2"}))

	c, ok := r.Get("zmt-2")
	g.Expect(ok).To(BeTrue())
	g.Expect(c.Name).To(Equal("c"))
}

func TestLoad_DefaultInterval(t *testing.T) {
	g := NewWithT(t)

	custom := def("custom")
	custom.IntervalSeconds = 60

	r, err := registry.Load([]core.Definition{def("builtin")}, []core.Definition{custom})
	g.Expect(err).ToNot(HaveOccurred())

	list := r.List()
	g.Expect(list[0].IntervalSeconds).To(Equal(core.DefaultIntervalSeconds))
	g.Expect(list[1].IntervalSeconds).To(Equal(60))
}

func TestLoad_ExplicitIDCollisionFails(t *testing.T) {
	g := NewWithT(t)

	first := def("first")
	first.ID = "rest-auth"
	second := def("second")
	second.ID = "rest-auth"

	_, err := registry.Load([]core.Definition{first}, []core.Definition{second})
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, registry.ErrDuplicateID)).To(BeTrue())
}

func TestLoad_ExplicitIDCollidingWithPositionalID(t *testing.T) {
	g := NewWithT(t)

	explicit := def("explicit")
	explicit.ID = "zmt-0"

	_, err := registry.Load([]core.Definition{def("auto")}, []core.Definition{explicit})
	g.Expect(errors.Is(err, registry.ErrDuplicateID)).To(BeTrue())
}

func TestLoad_AggregatesValidationErrors(t *testing.T) {
	g := NewWithT(t)

	badRange := def("range")
	badRange.MinServerVersion = "4.3.0"
	badRange.MaxServerVersion = "4.2.0"

	_, err := registry.Load([]core.Definition{
		{Name: "", Checker: noop()},
		{Name: "no checker"},
		badRange,
	}, nil)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("name is required"))
	g.Expect(err.Error()).To(ContainSubstring("checker is required"))
	g.Expect(err.Error()).To(ContainSubstring("greater than max_server_version"))
}

func TestLoad_RejectsIntervalsOutOfRange(t *testing.T) {
	g := NewWithT(t)

	negative := def("negative")
	negative.IntervalSeconds = -5
	huge := def("huge")
	huge.IntervalSeconds = 10_000_000_000
	maxed := def("maxed")
	maxed.IntervalSeconds = core.MaxIntervalSeconds

	_, err := registry.Load([]core.Definition{negative, huge}, nil)
	g.Expect(err).To(MatchError(ContainSubstring("-5")))
	g.Expect(err).To(MatchError(ContainSubstring("10000000000")))

	reg, err := registry.Load([]core.Definition{maxed}, nil)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(reg.List()[0].IntervalSeconds).To(Equal(core.MaxIntervalSeconds))
}

func TestRegister_RejectedDefinitionKeepsPositions(t *testing.T) {
	g := NewWithT(t)

	r := registry.New()
	g.Expect(r.Register(def("a"))).To(Succeed())
	g.Expect(r.Register(core.Definition{Name: "broken"})).ToNot(Succeed())
	g.Expect(r.Register(def("c"))).To(Succeed())

	_, ok := r.Get("zmt-2")
	g.Expect(ok).To(BeTrue())
	g.Expect(r.Len()).To(Equal(2))
}

func TestMustRegister_Panics(t *testing.T) {
	g := NewWithT(t)

	r := registry.New()
	g.Expect(func() { r.MustRegister(core.Definition{}) }).To(Panic())
}
