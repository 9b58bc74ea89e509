package types

import "fmt"

// PackageNotFoundError means the source does not know the descriptor.
type PackageNotFoundError struct {
	Package PackageRef
	Hint    string
	Cause   error
}

func (e *PackageNotFoundError) Error() string {
	msg := fmt.Sprintf("could not find package %s", e.Package)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PackageNotFoundError) Unwrap() error { return e.Cause }

// VersionNotFoundError means the descriptor is known but the version is not.
type VersionNotFoundError struct {
	Package PackageRef
	Version string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("package %s has no version %s", e.Package, e.Version)
}

// SourceUnavailableError is a transient I/O or network failure that
// survived the transport's retries.
type SourceUnavailableError struct {
	Package PackageRef
	URL     string
	Cause   error
}

func (e *SourceUnavailableError) Error() string {
	target := e.URL
	if target == "" {
		target = e.Package.String()
	}
	if e.Cause == nil {
		return fmt.Sprintf("source unavailable for %s", target)
	}
	return fmt.Sprintf("source unavailable for %s: %v", target, e.Cause)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Cause }

// DescriptorMismatchError means a package found through a descriptor
// disagrees with the dependency that referenced it.
type DescriptorMismatchError struct {
	Expected string
	Actual   string
	Location string
}

func (e *DescriptorMismatchError) Error() string {
	return fmt.Sprintf("expected package %q at %s but its pubspec declares %q", e.Expected, e.Location, e.Actual)
}

// CacheError wraps failures of the system cache, including lock failures.
type CacheError struct {
	Key   string
	Op    string
	Cause error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }

// LockFileCorruptError means the lock file exists but cannot be read back.
type LockFileCorruptError struct {
	Path  string
	Cause error
}

func (e *LockFileCorruptError) Error() string {
	return fmt.Sprintf("lock file %s is corrupt: %v", e.Path, e.Cause)
}

func (e *LockFileCorruptError) Unwrap() error { return e.Cause }

// CycleError is raised when a package's dependency names the package
// itself through a different descriptor, which cannot be solved as two
// distinct packages.
type CycleError struct {
	Package PackageRef
	Via     PackageRef
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("package %s depends on itself through %s", e.Package, e.Via)
}
