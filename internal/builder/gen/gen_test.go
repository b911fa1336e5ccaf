package gen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteConfig(t *testing.T) {
	assert.Equal(t, "/b/include_debug", SubstituteConfig("/b/include_"+ConfigPlaceholder, "debug"))
	assert.Equal(t, "/b/plain", SubstituteConfig("/b/plain", "debug"))
	assert.Equal(t,
		[]string{"quartz", "autogen", "/b/QuartzFiles/app_autogen.dir", "release"},
		substituteArgs([]string{"quartz", "autogen", "/b/QuartzFiles/app_autogen.dir", ConfigPlaceholder}, "release"))
}

func TestIsCxx(t *testing.T) {
	assert.True(t, isCxx("src/main.cpp"))
	assert.True(t, isCxx("src/Main.CC"))
	assert.False(t, isCxx("src/legacy.c"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "app_autogen", sanitize("app_autogen"))
	assert.Equal(t, "my_app_1", sanitize("my-app.1"))
}

func TestNinjaGenerate(t *testing.T) {
	g := NewNinjaGen("debug")
	g.SetCompiler("gcc", "g++")

	g.AddUtilityTarget(UtilityTarget{
		Name:       "app_autogen",
		WorkingDir: "/b",
		Step: BuildStep{
			CommandLines: [][]string{{"/usr/local/bin/quartz", "autogen", "/b/QuartzFiles/app_autogen.dir", ConfigPlaceholder}},
			Comment:      "Automatic MOC, UIC and RCC for target app",
		},
	})
	g.AddTarget("app", "/src/app",
		[]string{"/src/app/main.cpp", "/b/app_autogen/mocs_compilation.cpp"},
		nil, []string{"app_autogen"}, false,
		[]string{"-I/b/app_autogen/include_" + ConfigPlaceholder}, nil)

	out := g.Generate()

	// the utility becomes a rule plus an always-dirty stamp edge and a phony alias
	assert.Contains(t, out, "rule app_autogen_cmd")
	assert.Contains(t, out, "command = cd /b && /usr/local/bin/quartz autogen /b/QuartzFiles/app_autogen.dir debug")
	assert.Contains(t, out, "description = Automatic MOC, UIC and RCC for target app")
	assert.Contains(t, out, "build app_autogen.stamp: app_autogen_cmd")
	assert.Contains(t, out, "build app_autogen: phony app_autogen.stamp")

	// object edges wait on the utility with an order-only dependency
	assert.Contains(t, out, "|| app_autogen")
	assert.Contains(t, out, "cflags_app = -I/b/app_autogen/include_debug")
	assert.Contains(t, out, "mocs_compilation.cpp")
}

func TestNinjaUtilityByproducts(t *testing.T) {
	g := NewNinjaGen("release")
	g.AddUtilityTarget(UtilityTarget{
		Name:       "gen_tables",
		WorkingDir: "/b",
		Step: BuildStep{
			Byproducts:   []string{"/b/tables.cpp"},
			Depends:      []string{"/src/tables.txt"},
			CommandLines: [][]string{{"gen-tables"}},
		},
	})

	out := g.Generate()
	assert.Contains(t, out, "build /b/tables.cpp: gen_tables_cmd | /src/tables.txt")
	assert.NotContains(t, out, "gen_tables.stamp")
}

func TestNinjaRejectsPreBuildSteps(t *testing.T) {
	g := NewNinjaGen("debug")
	assert.False(t, g.SupportsPreBuild())
	assert.Error(t, g.AttachPreBuildStep("app", BuildStep{}))
}

func TestVS2022PreBuildEvent(t *testing.T) {
	g := NewVS2022Gen()
	require.True(t, g.MultiConfig())
	assert.Equal(t, []string{"Debug", "Release"}, g.Configurations())

	assert.Error(t, g.AttachPreBuildStep("app", BuildStep{}))

	g.AddTarget("app", "/src/app", []string{"/src/app/main.cpp"}, nil, nil, false, nil, nil)
	require.NoError(t, g.AttachPreBuildStep("app", BuildStep{
		CommandLines: [][]string{{"quartz", "autogen", "dir", ConfigPlaceholder}},
		Comment:      "Automatic MOC, UIC and RCC for target app",
	}))

	ev := preBuildEventFor(g.preBuildSteps["app"])
	require.NotNil(t, ev)
	assert.Equal(t, "quartz autogen dir $(Configuration)", ev.Command)
	assert.Equal(t, "Automatic MOC, UIC and RCC for target app", ev.Message)

	assert.Nil(t, preBuildEventFor(nil))
}

func TestVS2022PreBuildEventJoinsSteps(t *testing.T) {
	ev := preBuildEventFor([]BuildStep{
		{CommandLines: [][]string{{"first"}}, Comment: "one"},
		{CommandLines: [][]string{{"second"}}, Comment: "two"},
	})
	require.NotNil(t, ev)
	assert.Equal(t, "first\r\nsecond", ev.Command)
	assert.Equal(t, "one; two", ev.Message)
}

func TestVS2022UtilityProjectReferences(t *testing.T) {
	dir := t.TempDir()
	buildDir := filepath.Join(dir, "build")

	g := NewVS2022Gen()
	g.AddTarget("corelib.lib", dir, []string{filepath.Join(dir, "core.cpp")}, nil, nil, true, nil, nil)
	g.AddUtilityTarget(UtilityTarget{
		Name:       "app_autogen",
		WorkingDir: buildDir,
		Step: BuildStep{
			Depends:      []string{"corelib.lib", filepath.Join(dir, "extra.json")},
			CommandLines: [][]string{{"quartz", "autogen", "dir", ConfigPlaceholder}},
		},
	})
	g.Generate()

	data, err := os.ReadFile(filepath.Join(buildDir, "app_autogen", "app_autogen.vcxproj"))
	require.NoError(t, err)
	content := string(data)

	// the depended-on target becomes a project reference so a solution
	// build sequences the utility after it; plain file depends do not
	assert.Contains(t, content, `..\corelib.lib\corelib.lib.vcxproj`)
	assert.Contains(t, content, "<Name>corelib</Name>")
	assert.NotContains(t, content, "extra.json")
}

func TestUtilityCommandNoWorkDir(t *testing.T) {
	cmd := utilityCommand("", BuildStep{CommandLines: [][]string{{"a"}, {"b"}}}, "debug")
	assert.Equal(t, "a && b", cmd)
	assert.False(t, strings.HasPrefix(cmd, "cd"))
}
