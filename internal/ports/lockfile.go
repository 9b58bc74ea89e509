package ports

import "pub/internal/types"

type LockFilePort interface {
	Read(path string) (types.LockFile, error)
	Write(path string, lock types.LockFile) error
	Parse(data []byte, baseDir string) (types.LockFile, error)
	Serialize(lock types.LockFile, baseDir string) ([]byte, error)
}
