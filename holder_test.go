package bind_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/bind"
)

func TestUniquePtrRelease(t *testing.T) {
	u := bind.NewUnique(&Shape{name: "u"})
	assert.False(t, u.Empty())
	v := u.Release()
	assert.Equal(t, "u", v.(*Shape).name)
	assert.True(t, u.Empty())
	assert.Nil(t, u.Get())

	var nilPtr *bind.UniquePtr
	assert.True(t, nilPtr.Empty())
	assert.Nil(t, nilPtr.Release())
}

func TestSharedPtrCounts(t *testing.T) {
	p := bind.MakeShared(&Shape{name: "s"})
	assert.Equal(t, 1, p.UseCount())

	q := p.Copy()
	assert.Equal(t, 2, p.UseCount())
	assert.Same(t, p.Get(), q.Get())

	p.Reset()
	assert.Nil(t, p.Get())
	assert.Equal(t, 0, p.UseCount())
	assert.Equal(t, 1, q.UseCount())
	assert.NotNil(t, q.Get())

	q.Reset()
	q.Reset()
	assert.Equal(t, 0, q.UseCount())
}

func TestHolderKinds(t *testing.T) {
	tests := []struct {
		kind   bind.HolderKind
		name   string
		owning bool
	}{
		{bind.HolderNone, "none", false},
		{bind.HolderValue, "value", true},
		{bind.HolderReference, "reference", false},
		{bind.HolderPointer, "pointer", true},
		{bind.HolderUnique, "unique", true},
		{bind.HolderShared, "shared", true},
		{bind.HolderObject, "object", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.kind.String())
		assert.Equal(t, tt.owning, tt.kind.Owning(), tt.name)
	}
}

func TestResultConstructors(t *testing.T) {
	s := &Shape{}
	assert.Equal(t, bind.HolderPointer, bind.Ptr(s).Kind())
	assert.Equal(t, bind.HolderPointer, bind.PtrAs[sider](s).Kind())
	assert.Equal(t, "bind_test.sider", bind.PtrAs[sider](s).Static().String())
	assert.Equal(t, bind.HolderReference, bind.Ref(s).Kind())
	assert.Equal(t, bind.HolderValue, bind.Value(*s).Kind())
	assert.Equal(t, bind.HolderUnique, bind.Unique(bind.NewUnique(s)).Kind())
	assert.Equal(t, bind.HolderShared, bind.Shared(bind.MakeShared(s)).Kind())
	assert.Equal(t, bind.HolderObject, bind.Object(nil).Kind())
}

func TestSharedClassWrapsUniqueResults(t *testing.T) {
	s := newFixtures(t)
	tf3 := s.Ledger.Get("TestFactory3")

	inst, err := s.RT.Wrap(bind.Unique(bind.NewUnique(s.NewTF3("u"))), nil)
	require.NoError(t, err)
	rec := inst.Record()
	assert.Equal(t, bind.HolderShared, rec.Holder)
	assert.Equal(t, 1, rec.Shared().UseCount())

	inst.Release()
	assert.Equal(t, 0, tf3.Alive())
}

func TestWrapReturnsObjectAsIs(t *testing.T) {
	s := newFixtures(t)
	inst := mustNew(t, s.TF3, "obj")
	defer inst.Release()

	same, err := s.RT.Wrap(bind.Object(inst), s.TF3)
	require.NoError(t, err)
	assert.Same(t, inst, same)
}

func TestWrapRejectsUnregisteredValues(t *testing.T) {
	s := newFixtures(t)
	_, err := s.RT.Wrap(bind.Ptr(&sideCounter{}), nil)
	require.Error(t, err)
	assert.True(t, bind.IsKind(err, bind.KindCast))
}
