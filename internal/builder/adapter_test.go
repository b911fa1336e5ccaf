package builder

import (
	"testing"

	"github.com/quartz-build/quartz/internal/autogen"
	"github.com/quartz-build/quartz/internal/builder/gen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adapterFixture(g gen.Generator) graphAdapter {
	packages := map[string]*Package{
		"corelib": {
			Name: "corelib",
			Config: &Config{
				Package: PackageSection{Name: "corelib"},
				Target:  TargetSection{Lib: true},
			},
		},
		"headers": {
			Name: "headers",
			Config: &Config{
				Package: PackageSection{Name: "headers"},
				Target:  TargetSection{Lib: true, HeaderOnly: true},
			},
		},
	}
	return newGraphAdapter(g, packages, map[string]string{"Qt5::moc": "/usr/lib/qt5/bin/moc"})
}

func TestResolveDepends(t *testing.T) {
	a := adapterFixture(gen.NewNinjaGen("debug"))
	coreNode := a.nodes["corelib"]
	require.NotEmpty(t, coreNode)
	require.NotEqual(t, "corelib", coreNode)

	// target names become the backend's artifact nodes, targets without an
	// artifact vanish, file paths pass through
	resolved := a.resolveDepends([]string{"corelib", "headers", "Qt5::moc", "/abs/extra.json"})
	assert.Equal(t, []string{coreNode, "/abs/extra.json"}, resolved)
}

func TestUtilityDependsResolveToNinjaNodes(t *testing.T) {
	g := gen.NewNinjaGen("debug")
	a := adapterFixture(g)
	coreNode := a.nodes["corelib"]

	a.AddUtilityTarget(autogen.UtilityTarget{
		Name:       "app_autogen",
		WorkingDir: "/b",
		Step: autogen.BuildStep{
			Depends:      []string{"corelib", "/abs/extra.json"},
			CommandLines: [][]string{{"quartz", "autogen", "/b/QuartzFiles/app_autogen.dir", gen.ConfigPlaceholder}},
		},
	})
	g.AddTarget(coreNode, "/src/corelib", []string{"/src/corelib/core.cpp"}, nil, nil, true, nil, nil)

	out := g.Generate()

	// every order-only dependency names a node the file declares
	assert.Contains(t, out, "build app_autogen.stamp: app_autogen_cmd | "+coreNode+" /abs/extra.json")
	assert.Contains(t, out, "build "+coreNode+": ar")
	assert.NotContains(t, out, "| corelib ")
}
