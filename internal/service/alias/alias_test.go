package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParts(t *testing.T) {
	base, initials := Parts("Nguyễn Văn An")
	assert.Equal(t, "An", base)
	assert.Equal(t, "NV", initials)

	base, initials = Parts("đỗ thị Hoa")
	assert.Equal(t, "Hoa", base)
	assert.Equal(t, "ĐT", initials, "initials are uppercased")

	base, initials = Parts("Linh")
	assert.Equal(t, "Linh", base)
	assert.Empty(t, initials)
}

func TestResolve_FirstHolderKeepsPlainBase(t *testing.T) {
	assert.Equal(t, "An", Resolve("Nguyễn Văn An", nil))
}

func TestResolve_CollisionAppendsInitials(t *testing.T) {
	// Arrange: first An already checked in
	existing := []string{"An"}

	// Act
	got := Resolve("Trần Văn An", existing)

	// Assert
	assert.Equal(t, "AnTV", got)
	assert.Equal(t, []string{"An"}, existing, "existing aliases are never rewritten")
}

func TestResolve_CollisionIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "AnTV", Resolve("Trần Văn An", []string{"an"}))
	assert.Equal(t, "AnTV2", Resolve("Trần Văn An", []string{"An", "antv"}))
}

func TestResolve_NumericSuffixUsesMaxPlusOne(t *testing.T) {
	existing := []string{"An", "AnTV", "AnTV4", "AnTV2"}
	assert.Equal(t, "AnTV5", Resolve("Trần Văn An", existing))
}

func TestResolve_SingleTokenCollision(t *testing.T) {
	assert.Equal(t, "An2", Resolve("An", []string{"An"}))
	assert.Equal(t, "An3", Resolve("An", []string{"An", "An2"}))
}

func TestResolve_IgnoresLongerNamesSharingPrefix(t *testing.T) {
	// "Anh" starts with "An" but is a different base.
	assert.Equal(t, "An", Resolve("Lê An", []string{"Anh", "AnhLT"}))
}

func TestResolve_SequenceOfCheckIns(t *testing.T) {
	names := []string{"Nguyễn Văn An", "Trần Văn An", "Lê An", "Trần Văn An"}
	want := []string{"An", "AnTV", "AnL", "AnTV2"}

	var stored []string
	for i, name := range names {
		got := Resolve(name, stored)
		assert.Equal(t, want[i], got, "check-in #%d (%s)", i+1, name)
		stored = append(stored, got)
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Nguyễn Văn An", NormalizeName("  Nguyễn   Văn\tAn "))
	assert.Equal(t, "", NormalizeName("   "))
}
