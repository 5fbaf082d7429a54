/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package stringpool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"embervm/object"
)

// Pool.Intern returns the same backing string for any two content-equal
// Go strings, even when they were built from distinct byte slices.
func TestPoolInternSameContentSameCanonical(t *testing.T) {
	p := NewPool()
	s1 := fmt.Sprintf("%s", "java/lang/String")
	s2 := string([]byte("java/lang/String"))
	canonical := p.Intern(s1)
	got := p.Intern(s2)
	assert.Equal(t, canonical, got)
	assert.Equal(t, 1, p.Len())
}

func TestPoolInternDistinctContent(t *testing.T) {
	p := NewPool()
	p.Intern("java/lang/String")
	p.Intern("java/lang/Object")
	assert.Equal(t, 2, p.Len())
}

// intern(s1) == intern(s2) (same *object.Instance) iff the underlying
// content is equal -- spec's intern-table invariant.
func TestStringTableInternIdentity(t *testing.T) {
	table := NewStringTable()
	construct := func(content string) func() *object.Instance {
		return func() *object.Instance {
			inst := object.NewInstance("java/lang/String")
			inst.SetInternalString(content)
			return inst
		}
	}

	a1 := table.Intern("hello", construct("hello"))
	a2 := table.Intern("hello", construct("hello"))
	assert.Same(t, a1, a2, "equal content must intern to the same instance")

	b := table.Intern("world", construct("world"))
	assert.NotSame(t, a1, b, "distinct content must intern to distinct instances")

	assert.Equal(t, 2, table.Len())
}

func TestStringTableInternOnlyConstructsOnce(t *testing.T) {
	table := NewStringTable()
	calls := 0
	construct := func() *object.Instance {
		calls++
		inst := object.NewInstance("java/lang/String")
		inst.SetInternalString("x")
		return inst
	}

	table.Intern("x", construct)
	table.Intern("x", construct)
	table.Intern("x", construct)

	assert.Equal(t, 1, calls)
}
