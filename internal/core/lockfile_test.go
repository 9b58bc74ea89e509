package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pub/internal/types"
	"pub/internal/version"
)

// ---------------------------------------------------------------------------
// Fingerprint
// ---------------------------------------------------------------------------

func TestLockValidAgainstSameRoot(t *testing.T) {
	source := newFakeSource().add("foo", "1.0.0")
	root := rootPubspec(hostedDep("foo", "^1.0.0"))

	result, err := solve(t, source, root, types.LockFile{}, nil)
	require.NoError(t, err)
	lock := ComputeLockFile(result)
	assert.True(t, IsLockValid(lock, root))
}

func TestLockInvalidWhenRootChanges(t *testing.T) {
	root := rootPubspec(hostedDep("foo", "^1.0.0"))
	lock := types.LockFile{Fingerprint: Fingerprint(root)}

	changes := map[string]types.Pubspec{
		"constraint": rootPubspec(hostedDep("foo", "^2.0.0")),
		"added":      rootPubspec(hostedDep("foo", "^1.0.0"), hostedDep("bar", "any")),
		"removed":    rootPubspec(),
		"source":     rootPubspec(types.Dependency{Name: "foo", Description: types.PathDescription("/src/foo", false), Constraint: version.MustParseConstraint("^1.0.0")}),
	}
	for name, changed := range changes {
		assert.False(t, IsLockValid(lock, changed), name)
	}

	dev := rootPubspec(hostedDep("foo", "^1.0.0"))
	dev.DevDependencies = []types.Dependency{hostedDep("lints", "any")}
	assert.False(t, IsLockValid(lock, dev))

	assert.False(t, IsLockValid(types.LockFile{}, root))
}

func TestFingerprintIgnoresDeclarationOrderAndSpelling(t *testing.T) {
	a := rootPubspec(hostedDep("foo", "^1.0.0"), hostedDep("bar", "any"))
	b := rootPubspec(hostedDep("bar", "any"), hostedDep("foo", ">=1.0.0 <2.0.0"))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

// ---------------------------------------------------------------------------
// Consistency
// ---------------------------------------------------------------------------

func TestVerifyLockConsistency(t *testing.T) {
	source := newFakeSource().
		add("a", "1.0.0", hostedDep("b", "^1.0.0")).
		add("b", "1.0.0")
	result, err := solve(t, source, rootPubspec(hostedDep("a", "^1.0.0")), types.LockFile{}, nil)
	require.NoError(t, err)
	lock := ComputeLockFile(result)
	require.NoError(t, VerifyLockConsistency(lock, "myapp", result.Dependencies))

	broken := ComputeLockFile(result)
	entry := broken.Packages["b"]
	entry.ID.Version = version.MustParse("2.0.0")
	broken.Packages["b"] = entry
	require.Error(t, VerifyLockConsistency(broken, "myapp", result.Dependencies))

	delete(broken.Packages, "b")
	require.Error(t, VerifyLockConsistency(broken, "myapp", result.Dependencies))
}

// ---------------------------------------------------------------------------
// Diff
// ---------------------------------------------------------------------------

func TestDiffLocks(t *testing.T) {
	old := lockOf(map[string]string{"foo": "1.0.0", "bar": "1.0.0", "same": "3.0.0"})
	updated := lockOf(map[string]string{"foo": "1.2.0", "baz": "0.1.0", "same": "3.0.0"})

	changes := DiffLocks(old, updated)
	got := map[string]types.LockChangeKind{}
	order := []string{}
	for _, change := range changes {
		got[change.Name] = change.Kind
		order = append(order, change.Name)
	}
	want := map[string]types.LockChangeKind{
		"bar":  types.LockChangeRemoved,
		"baz":  types.LockChangeAdded,
		"foo":  types.LockChangeChanged,
		"same": types.LockChangeUnchanged,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected diff kinds (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"bar", "baz", "foo", "same"}, order)
}
