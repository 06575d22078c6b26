package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("v2.1.3")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 2, Minor: 1, Patch: 3}, v)
	assert.Equal(t, "2.1.3", v.String())

	for _, bad := range []string{"", "1.2", "1.2.x", "1.-2.0", "1.2.3.4"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestVersionCompare(t *testing.T) {
	assert.Equal(t, 0, Baseline.Compare(Version{Major: 1}))
	assert.Equal(t, -1, Baseline.Compare(Version{Major: 1, Patch: 1}))
	assert.Equal(t, 1, Version{Major: 2}.Compare(Version{Major: 1, Minor: 9}))
}

func TestBumpFor(t *testing.T) {
	tests := []struct {
		class    ChangeClass
		breaking bool
		want     Bump
		next     string
	}{
		{ClassEditorial, false, BumpNone, "1.0.0"},
		{ClassClarifying, false, BumpPatch, "1.0.1"},
		{ClassStructural, false, BumpMinor, "1.1.0"},
		{ClassStructural, true, BumpMajor, "2.0.0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.class, tt.breaking), func(t *testing.T) {
			b := BumpFor(tt.class, tt.breaking)
			assert.Equal(t, tt.want, b)
			assert.Equal(t, tt.next, Baseline.Apply(b).String())
		})
	}
}

func TestApplyResetsLowerComponents(t *testing.T) {
	v := Version{Major: 1, Minor: 4, Patch: 2}
	assert.Equal(t, "2.0.0", v.Apply(BumpMajor).String())
	assert.Equal(t, "1.5.0", v.Apply(BumpMinor).String())
	assert.Equal(t, "1.4.3", v.Apply(BumpPatch).String())
}

func TestMaxBumpAndClass(t *testing.T) {
	assert.Equal(t, BumpNone, MaxBump("", ""))
	assert.Equal(t, BumpMajor, MaxBump(BumpPatch, BumpMajor))
	assert.Equal(t, BumpMinor, MaxBump(BumpMinor, BumpPatch))

	assert.Equal(t, ClassEditorial, MaxClass("", ""))
	assert.Equal(t, ClassStructural, MaxClass(ClassClarifying, ClassStructural))
	assert.Equal(t, ClassClarifying, MaxClass(ClassClarifying, ClassEditorial))
}

func TestVersionMetadataReplay(t *testing.T) {
	m := NewVersionMetadata()
	m.Record(ClassClarifying, false)
	m.Record(ClassEditorial, false)
	ch := m.Record(ClassStructural, true)
	m.Record(ClassStructural, false)

	assert.Equal(t, "1.0.1", ch.Old.String())
	assert.Equal(t, "2.0.0", ch.New.String())
	assert.Equal(t, "2.1.0", m.Current.String())
	assert.Len(t, m.Log, 4)
	assert.Equal(t, m.Current, m.Replay(), "current version is a pure function of the log")
}

func TestErrorCodes(t *testing.T) {
	diags := []Diagnostic{{Severity: SeverityError, Code: CodeDerivationCycle, Message: "cycle"}}
	err := fmt.Errorf("synthesize: %w", NewStructuralError("derivation cycle", diags))

	assert.True(t, IsStructural(err))
	assert.False(t, IsDangling(err))
	assert.False(t, IsConflict(err))
	assert.Equal(t, diags, DiagnosticsOf(err))
	assert.Contains(t, err.Error(), "(1 diagnostics)")

	assert.True(t, IsDangling(NewDanglingReference("edge", nil)))
	assert.True(t, IsConflict(NewConflictState("both", nil)))
	assert.Nil(t, DiagnosticsOf(errors.New("plain")))

	earlier := []Diagnostic{{Severity: SeverityWarning, Code: CodeThinSection}}
	merged := NewStructuralError("x", diags).WithDiagnostics(earlier)
	require.Len(t, merged.Diagnostics, 2)
	assert.Equal(t, CodeThinSection, merged.Diagnostics[0].Code)
}
